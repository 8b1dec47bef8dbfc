package bootstrap

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"

	"essay-eval-orchestrator/internal/api"
	"essay-eval-orchestrator/internal/cache"
	"essay-eval-orchestrator/internal/config"
	"essay-eval-orchestrator/internal/evaluation"
	"essay-eval-orchestrator/internal/events"
	"essay-eval-orchestrator/internal/storage"
	apptemporal "essay-eval-orchestrator/internal/temporal"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Runtime is an evaluation service plus the backing connections it owns.
type Runtime struct {
	Service *evaluation.Service
	Ready   []api.Pinger

	closers []func()
}

// Close releases connections in reverse order of creation.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// NewRuntime connects the configured executor and optional backends. Postgres, Redis and
// NATS are only used when their URL is set.
func NewRuntime(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	executor, err := rt.executor(cfg, logger)
	if err != nil {
		return nil, err
	}

	var opts []evaluation.Option

	if cfg.PostgresDSN != "" {
		store, err := storage.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = store.Close() })
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		opts = append(opts, evaluation.WithStore(store))
		rt.Ready = append(rt.Ready, store)
	}

	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
		outcomes := cache.NewOutcomeCache(redisClient, cfg.CacheTTL)
		opts = append(opts, evaluation.WithCache(outcomes))
		rt.Ready = append(rt.Ready, outcomes)
	}

	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL, nats.Name("essay-eval-orchestrator"))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = conn.Drain() })
		opts = append(opts, evaluation.WithPublisher(events.NewNATSPublisher(conn, cfg.NATSSubject)))
		rt.Ready = append(rt.Ready, pingFunc(func(context.Context) error {
			if !conn.IsConnected() {
				return fmt.Errorf("nats status %s", conn.Status())
			}
			return nil
		}))
	}

	rt.Service = evaluation.NewService(executor, logger, opts...)
	ok = true
	return rt, nil
}

func (rt *Runtime) executor(cfg config.Config, logger zerolog.Logger) (evaluation.Executor, error) {
	if cfg.ExecutionMode != config.ExecutionTemporal {
		j, err := NewJudge(cfg, logger)
		if err != nil {
			return nil, err
		}
		return evaluation.NewRunner(j, logger), nil
	}
	if err := apptemporal.CheckJudgeTimeout(cfg.LLMTimeout); err != nil {
		return nil, err
	}

	temporalClient, err := DialTemporal(cfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, temporalClient.Close)
	rt.Ready = append(rt.Ready, pingFunc(func(ctx context.Context) error {
		_, err := temporalClient.CheckHealth(ctx, &client.CheckHealthRequest{})
		return err
	}))
	return &apptemporal.Executor{
		Client:    temporalClient,
		TaskQueue: cfg.TemporalTaskQueue,
		IDPrefix:  cfg.WorkflowIDPrefix,
	}, nil
}

func DialTemporal(cfg config.Config) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		return nil, fmt.Errorf("connect temporal: %w", err)
	}
	return c, nil
}
