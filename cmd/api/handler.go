package api

import (
	"log"

	authDelivery "voicetask-backend/internal/auth/delivery"
	authRepo "voicetask-backend/internal/auth/repository"
	authUsecase "voicetask-backend/internal/auth/usecase"
	taskDelivery "voicetask-backend/internal/task/delivery"
	taskRepo "voicetask-backend/internal/task/repository"
	taskUsecasePkg "voicetask-backend/internal/task/usecase"
	"voicetask-backend/pkg/ai"
	"voicetask-backend/pkg/config"
	"voicetask-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase      authUsecase.AuthUsecase
	taskUsecase      taskUsecasePkg.TaskUsecase
	sseManager       *sse.Manager
	config           *config.Config
	authHandler      *authDelivery.AuthHandler
	taskHandler      *taskDelivery.TaskHandler
	transcriptWorker *taskUsecasePkg.TranscriptWorker
}

func NewHandler(authUc authUsecase.AuthUsecase, taskUc taskUsecasePkg.TaskUsecase, sseManager *sse.Manager, cfg *config.Config, taskRepository taskRepo.TaskRepository, fcmRepository authRepo.FCMTokenRepository) *Handler {
	// Initialize runtime config for settings API
	InitRuntimeConfig(cfg.OllamaBaseURL, cfg.OllamaModel)

	// Initialize AI service with dynamic config getters for runtime updates
	aiCfg := ai.DynamicConfig{
		Provider:         ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:     cfg.GeminiApiKey,
		GetOllamaBaseURL: GetRuntimeOllamaBaseURL,
		GetOllamaModel:   GetRuntimeOllamaModel,
	}
	aiService, err := ai.NewTaskIntelligenceWithDynamicConfig(aiCfg)
	if err != nil {
		log.Printf("Warning: Failed to initialize AI service: %v", err)
	} else {
		log.Printf("AI service initialized with provider: %s (dynamic config enabled)", cfg.AIProvider)
	}

	if aiService != nil {
		taskUc.SetAIService(aiService)
	}
	taskUc.SetEventPublisher(sseManager)

	// Background transcription so creation never waits on a second model call
	transcriptWorker := taskUsecasePkg.NewTranscriptWorker(taskRepository, sseManager, 2)
	if aiService != nil {
		transcriptWorker.SetAIService(aiService)
	}
	transcriptWorker.Start()
	taskUc.SetTranscriptWorker(transcriptWorker)

	authHandler := authDelivery.NewAuthHandler(authUc, fcmRepository)
	taskHandler := taskDelivery.NewTaskHandler(taskUc)
	log.Println("Task handler initialized")

	return &Handler{
		authUsecase:      authUc,
		taskUsecase:      taskUc,
		sseManager:       sseManager,
		config:           cfg,
		authHandler:      authHandler,
		taskHandler:      taskHandler,
		transcriptWorker: transcriptWorker,
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Setup routes
	SetupRoutes(r, h.authUsecase, h.sseManager, h.authHandler, h.taskHandler)

	return r.Run(addr)
}
