package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voicelab/scriptloop/config"
	"github.com/voicelab/scriptloop/internal/adapter/llm"
	"github.com/voicelab/scriptloop/internal/logger"
	"github.com/voicelab/scriptloop/internal/repository"
	"github.com/voicelab/scriptloop/internal/service"
	transporthttp "github.com/voicelab/scriptloop/internal/transport/http"
	"github.com/voicelab/scriptloop/policy"
)

func main() {
	cfg := config.Load()

	log := logger.New()
	log.WithField("port", cfg.HTTPPort).Info("starting script tuner")

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize store")
	}
	defer db.Close()

	generator := llm.NewGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout, cfg.LLMRetryMax)

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize policy engine")
	}

	svc := service.New(db, generator, policyEngine, cfg, log.Component("service"))

	server := transporthttp.NewServer(svc)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	log.WithField("port", cfg.HTTPPort).Info("API started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("failed to shut down server gracefully")
	}

	log.Info("stopped")
}
