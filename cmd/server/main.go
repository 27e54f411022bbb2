package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codearena/internal/api"
	"codearena/internal/app/grader"
	"codearena/internal/app/judge"
	"codearena/internal/app/service"
	"codearena/internal/common/logging"
	"codearena/internal/common/security"
	"codearena/internal/domain/repository"
	"codearena/internal/platform/cache"
	"codearena/internal/platform/config"
	"codearena/internal/platform/database"

	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	config.Load()

	logger := logging.New()
	defer logger.Sync()
	logger.Info("configuration loaded")

	// 2. Initialize JWT
	security.InitJWT()

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	logger.Info("database connected")

	// 4. Initialize Redis
	cache.ConnectRedis()
	defer cache.CloseRedis()
	logger.Info("redis connected")

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	badgeRepo := repository.NewPgBadgeRepository(database.DB)
	contestRepo := repository.NewPgContestRepository(database.DB)

	// 6. Execution client and grader
	judgeClient := judge.NewFromConfig(config.AppConfig, logger)
	g := grader.New(judgeClient, config.AppConfig.GradingCaseTimeout, config.AppConfig.GradingConcurrency, logger)

	// 7. Initialize Services
	authService := service.NewAuthService(userRepo)
	problemService := service.NewProblemService(problemRepo, g, database.DB, logger)
	submissionService := service.NewSubmissionService(
		submissionRepo, problemRepo, userRepo, badgeRepo, contestRepo,
		g, database.DB, cache.RDB, config.AppConfig.SubmitLockTTL, logger)
	contestService := service.NewContestService(
		contestRepo, userRepo, database.DB, cache.RDB, config.AppConfig.LeaderboardCacheTTL, logger)
	userService := service.NewUserService(
		userRepo, badgeRepo, cache.RDB, config.AppConfig.LeaderboardCacheTTL, logger)

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(authService, problemService, submissionService, contestService, userService)

	server := &http.Server{
		Addr:    ":" + config.AppConfig.APIPort,
		Handler: router,
		// Write timeout covers a full synchronous grading pass.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 130 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("port", config.AppConfig.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()

	<-stop

	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	logger.Info("server stopped gracefully")
}
