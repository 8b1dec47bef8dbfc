package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"essay-eval-orchestrator/internal/api"
	"essay-eval-orchestrator/internal/bootstrap"
	"essay-eval-orchestrator/internal/config"
	"essay-eval-orchestrator/internal/evaluation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := bootstrap.NewLogger(cfg, "api")

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	rt, err := bootstrap.NewRuntime(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialize evaluation runtime")
	}
	defer rt.Close()

	h := api.NewHandler(api.Config{
		MaxBodyBytes:      cfg.MaxBodyBytes,
		AllowedOrigins:    cfg.AllowedOrigins,
		EvaluationTimeout: cfg.EvaluationTimeout,
	}, rt.Service, evaluation.NewValidator(), logger, rt.Ready...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("execution_mode", cfg.ExecutionMode).
			Str("llm_provider", cfg.LLMProvider).
			Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("api stopped")
}
