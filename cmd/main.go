package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	ghclient "github.com/gitguide/gitguide-backend/internal/clients/github"
	"github.com/gitguide/gitguide-backend/internal/db"
	"github.com/gitguide/gitguide-backend/internal/handlers"
	"github.com/gitguide/gitguide-backend/internal/locks"
	"github.com/gitguide/gitguide-backend/internal/logger"
	"github.com/gitguide/gitguide-backend/internal/repos"
	"github.com/gitguide/gitguide-backend/internal/server"
	"github.com/gitguide/gitguide-backend/internal/services"
	"github.com/gitguide/gitguide-backend/internal/utils"
)

func main() {
	mode := os.Getenv("APP_ENV")
	log, err := logger.New(mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	utils.LoadDotEnv(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("failed to connect to postgres", "error", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Fatal("failed to migrate database", "error", err)
	}
	gdb := pg.DB()

	// Repos.
	userRepo := repos.NewUserRepo(gdb, log)
	userTokenRepo := repos.NewUserTokenRepo(gdb, log)
	projectRepo := repos.NewProjectRepo(gdb, log)
	conceptRepo := repos.NewConceptRepo(gdb, log)
	subtopicRepo := repos.NewSubtopicRepo(gdb, log)
	taskRepo := repos.NewTaskRepo(gdb, log)
	runRepo := repos.NewGenerationRunRepo(gdb, log)
	chatMessageRepo := repos.NewChatMessageRepo(gdb, log)

	// External clients.
	gh := ghclient.NewClient(utils.GetEnv("GITHUB_TOKEN", "", log), log)
	llm, err := services.NewGroqClient(log)
	if err != nil {
		log.Fatal("failed to build llm client", "error", err)
	}

	// Project-level locking: redis when configured, in-process otherwise.
	var locker locks.ProjectLocker
	if addr := utils.GetEnv("REDIS_ADDR", "", log); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: utils.GetEnv("REDIS_PASSWORD", "", log),
			DB:       utils.GetEnvAsInt("REDIS_DB", 0, log),
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal("failed to connect to redis", "error", err)
		}
		locker = locks.NewRedisLocker(rdb, log)
	} else {
		log.Warn("REDIS_ADDR not set, using in-process project locks")
		locker = locks.NewLocalLocker()
	}

	// Services.
	authService := services.NewAuthService(gdb, log, userRepo, userTokenRepo)
	projectService := services.NewProjectService(gdb, log, projectRepo, conceptRepo)
	processingService := services.NewProcessingService(gdb, log, runRepo, projectRepo, conceptRepo, projectService, gh, llm, locker)
	taskService := services.NewTaskService(gdb, log, projectService, conceptRepo, taskRepo, subtopicRepo, locker)
	chatService := services.NewChatService(gdb, log, projectService, conceptRepo, chatMessageRepo, gh, llm)

	router := server.NewRouter(server.RouterConfig{
		Log:            log,
		Mode:           mode,
		AllowedOrigins: []string{utils.GetEnv("FRONTEND_ORIGIN", "http://localhost:3000", log)},
		AuthService:    authService,
		Healthcheck:    handlers.NewHealthcheckHandler(),
		Auth:           handlers.NewAuthHandler(authService),
		User:           handlers.NewUserHandler(userRepo),
		Project:        handlers.NewProjectHandler(projectService, processingService),
		Processing:     handlers.NewProcessingHandler(processingService),
		Task:           handlers.NewTaskHandler(taskService),
		Chat:           handlers.NewChatHandler(chatService),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go processingService.StartWorker(ctx)

	srv := &http.Server{
		Addr:    ":" + utils.GetEnv("PORT", "8080", log),
		Handler: router,
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
