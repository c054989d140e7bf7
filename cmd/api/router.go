package api

import (
	"net/http"

	"voicetask-backend/internal/auth/delivery"
	authUsecase "voicetask-backend/internal/auth/usecase"
	taskDelivery "voicetask-backend/internal/task/delivery"
	"voicetask-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, sseManager *sse.Manager, authHandler *delivery.AuthHandler, taskHandler *taskDelivery.TaskHandler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// SSE endpoint
		api.GET("/events", delivery.AuthMiddleware(authUsecase), func(c *gin.Context) {
			userID := c.GetString("userID")
			sseManager.ServeHTTP(c, userID)
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/magic-link", authHandler.RequestMagicLink)
			auth.POST("/verify", authHandler.VerifyMagicLink)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", delivery.AuthMiddleware(authUsecase), authHandler.Me)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(delivery.AuthMiddleware(authUsecase))
		{
			fcm.POST("/register", authHandler.RegisterFCMToken)
			fcm.DELETE("/:token", authHandler.UnregisterFCMToken)
		}

		// Task board routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(delivery.AuthMiddleware(authUsecase))
		{
			tasks.GET("", taskHandler.GetTasks)
			tasks.GET("/search", taskHandler.SearchTasks)
			tasks.POST("/audio", taskHandler.CreateTaskFromAudio)
			tasks.GET("/:id", taskHandler.GetTaskByID)
			tasks.PUT("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
			tasks.POST("/:id/audio", taskHandler.UpdateTaskFromAudio)
			tasks.POST("/:id/move", taskHandler.MoveTask)
			tasks.POST("/:id/subtasks/generate", taskHandler.GenerateSubtasks)
			tasks.PATCH("/:id/subtasks/:subtaskId/toggle", taskHandler.ToggleSubtask)
		}

		// Settings routes (public) - Runtime configuration
		settings := api.Group("/settings")
		{
			settings.GET("/ollama", GetOllamaSettings)
			settings.PUT("/ollama", UpdateOllamaSettings)
			settings.POST("/ollama/test", TestOllamaConnection)
		}
	}
}
