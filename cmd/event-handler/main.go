package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"essay-eval-orchestrator/internal/bootstrap"
	"essay-eval-orchestrator/internal/config"
	"essay-eval-orchestrator/internal/evaluation"
	"essay-eval-orchestrator/internal/events"
	"essay-eval-orchestrator/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := bootstrap.NewLogger(cfg, "event-handler")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	rt, err := bootstrap.NewRuntime(startCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialize evaluation runtime")
	}
	defer rt.Close()

	minioClient, err := storage.NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect minio")
	}
	objects, err := storage.NewMinioStore(startCtx, minioClient, cfg.MinioBucket)
	if err != nil {
		logger.Fatal().Err(err).Msg("prepare minio bucket")
	}

	intake := events.NewIntake(objects, rt.Service, evaluation.NewValidator(), cfg.EvaluationTimeout, logger)
	source := events.NewMinioSubmissionSource(minioClient, cfg.MinioBucket)

	logger.Info().
		Str("bucket", cfg.MinioBucket).
		Str("prefix", events.SubmissionPrefix).
		Msg("event-handler listening for submissions")
	if err := source.Run(ctx, intake.Handle); err != nil {
		logger.Fatal().Err(err).Msg("event-handler stopped with error")
	}
}
