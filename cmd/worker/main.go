package main

import (
	"log"

	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"essay-eval-orchestrator/internal/bootstrap"
	"essay-eval-orchestrator/internal/config"
	appTemporal "essay-eval-orchestrator/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := bootstrap.NewLogger(cfg, "worker")

	if err := appTemporal.CheckJudgeTimeout(cfg.LLMTimeout); err != nil {
		logger.Fatal().Err(err).Msg("invalid judge timeout")
	}

	judge, err := bootstrap.NewJudge(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build rubric judge")
	}

	temporalClient, err := bootstrap.DialTemporal(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect temporal")
	}
	defer temporalClient.Close()

	activities := &appTemporal.Activities{Judge: judge}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.EssayEvaluationWorkflow, workflow.RegisterOptions{Name: appTemporal.EssayEvaluationWorkflowName})
	w.RegisterActivity(activities.PreprocessSubmissionActivity)
	w.RegisterActivity(activities.JudgeRubricActivity)

	logger.Info().Str("task_queue", cfg.TemporalTaskQueue).Msg("worker running")
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
}
