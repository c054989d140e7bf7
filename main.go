package main

import (
	"context"
	"log"
	"strings"

	api "voicetask-backend/cmd/api"
	authdomain "voicetask-backend/internal/auth/domain"
	authRepo "voicetask-backend/internal/auth/repository"
	authUsecase "voicetask-backend/internal/auth/usecase"
	"voicetask-backend/internal/notification"
	taskdomain "voicetask-backend/internal/task/domain"
	taskRepo "voicetask-backend/internal/task/repository"
	"voicetask-backend/internal/task/scheduler"
	taskUsecase "voicetask-backend/internal/task/usecase"
	"voicetask-backend/pkg/config"
	"voicetask-backend/pkg/database"
	"voicetask-backend/pkg/fcm"
	"voicetask-backend/pkg/mailer"
	"voicetask-backend/pkg/sse"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&authdomain.User{}, &authdomain.RefreshToken{}, &authdomain.MagicLinkToken{}, &authdomain.FCMToken{}, &taskdomain.Task{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	fcmTokenRepo := authRepo.NewFCMTokenRepository(db)
	taskRepository := taskRepo.NewGormTaskRepository(db)

	// Initialize SSE Manager
	sseManager := sse.NewManager()
	go sseManager.Run()

	// Initialize use cases (dependency injection)
	linkMailer := mailer.New(cfg)
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, linkMailer, cfg)
	taskUsecaseInstance := taskUsecase.NewTaskUsecase(taskRepository)

	// Initialize FCM Client (optional, reminders are disabled without it)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push reminders disabled): %v", err)
		}
	} else {
		log.Printf("[WARN] No Firebase credentials configured, FCM disabled")
	}

	// Initialize Pub/Sub fanout (optional, single instances push SSE directly)
	if cfg.GoogleProjectID != "" {
		// Extract short topic name from full resource name if necessary
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "task-updates"
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, sseManager, cfg.GoogleCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			taskUsecaseInstance.SetChangePublisher(notifService)
			go notifService.Start(context.Background())
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, cross-instance fanout disabled")
	}

	// Start the due date reminder scheduler
	reminderScheduler := scheduler.NewTaskReminderScheduler(taskRepository, fcmTokenRepo, fcmClient, sseManager)
	reminderScheduler.Start()

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, taskUsecaseInstance, sseManager, cfg, taskRepository, fcmTokenRepo)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
