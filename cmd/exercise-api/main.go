// Command exercise-api stores shared training exercises for trainer clients.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	appcfg "github.com/park285/cheese-trainer/internal/config"
	"github.com/park285/cheese-trainer/internal/exerciseapi"
	"github.com/park285/cheese-trainer/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	repo := exerciseapi.NewMemoryRepository()
	closeRepo := func() error { return nil }
	if cfg.DatabaseURL != "" {
		repo, closeRepo, err = exerciseapi.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres init error: %v", err)
		}
	} else {
		logger.Warn("exercise_api_memory_repo", zap.String("reason", "DATABASE_URL not set"))
	}
	defer func() { _ = closeRepo() }()

	if len(cfg.APITokens) == 0 {
		logger.Warn("exercise_api_no_tokens", zap.String("hint", "set API_TOKENS=token:owner"))
	}
	api := exerciseapi.NewServer(repo, cfg.APITokens, logger)
	srv := &fasthttp.Server{
		Handler:      api.Handler,
		Name:         "exercise-api",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(cfg.APIListenAddr) }()
	logger.Info("exercise_api_listening", zap.String("addr", cfg.APIListenAddr), zap.Bool("postgres", cfg.DatabaseURL != ""))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		logger.Error("exercise_api_stopped", zap.Error(err))
		return
	case <-sigCh:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.ShutdownWithContext(ctx); err != nil {
		logger.Warn("exercise_api_shutdown", zap.Error(err))
	}
}
