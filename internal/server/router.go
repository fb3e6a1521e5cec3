package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/gitguide/gitguide-backend/internal/handlers"
	"github.com/gitguide/gitguide-backend/internal/logger"
	"github.com/gitguide/gitguide-backend/internal/middleware"
	"github.com/gitguide/gitguide-backend/internal/services"
)

type RouterConfig struct {
	Log            *logger.Logger
	Mode           string
	AllowedOrigins []string

	AuthService services.AuthService

	Healthcheck *handlers.HealthcheckHandler
	Auth        *handlers.AuthHandler
	User        *handlers.UserHandler
	Project     *handlers.ProjectHandler
	Processing  *handlers.ProcessingHandler
	Task        *handlers.TaskHandler
	Chat        *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode == "prod" || cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Public routes.
	router.GET("/healthcheck", cfg.Healthcheck.Healthcheck)
	router.POST("/register", cfg.Auth.Register)
	router.POST("/login", cfg.Auth.Login)

	// Everything under /api requires a valid access token.
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg.AuthService, cfg.Log))
	{
		api.POST("/refresh", cfg.Auth.Refresh)
		api.POST("/logout", cfg.Auth.Logout)
		api.GET("/user", cfg.User.Me)

		api.POST("/projects", cfg.Project.Create)
		api.GET("/projects", cfg.Project.List)
		api.GET("/projects/:id", cfg.Project.Get)
		api.DELETE("/projects/:id", cfg.Project.Delete)

		api.POST("/projects/:id/process", cfg.Processing.Trigger)
		api.POST("/projects/:id/regenerate", cfg.Processing.Regenerate)
		api.GET("/projects/:id/status", cfg.Processing.Status)

		api.POST("/projects/:id/tasks/:taskId/complete", cfg.Task.Complete)
		api.GET("/projects/:id/progress", cfg.Task.Progress)

		api.POST("/projects/:id/chat", cfg.Chat.Send)
		api.GET("/projects/:id/chat/history", cfg.Chat.History)
	}

	return router
}
