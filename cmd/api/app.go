package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"atbat/internal/api/handlers"
	"atbat/internal/config"
	"atbat/internal/core"
	"atbat/internal/dataset"
	"atbat/internal/features"
	"atbat/internal/model"
	"atbat/internal/prediction"
	"atbat/internal/results"
	"atbat/internal/scenario"
	"atbat/internal/session"
	"atbat/internal/telemetry"
)

// app is the fully wired service: the HTTP server plus the background jobs
// that run for the life of the process.
type app struct {
	server     *core.Server
	background []func(ctx context.Context)
}

// buildApp loads the dataset and classifier, verifies that their schemas
// agree, and wires sessions, sinks, handlers and health probes. Any failure
// is fatal at startup.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	var (
		table      *dataset.Table
		classifier model.Classifier
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		table, err = dataset.Load(gctx, dataset.LoadOptions{
			EventsPath: cfg.Dataset.EventsPath,
			ParksPath:  cfg.Dataset.ParksPath,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("loading dataset: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		classifier, err = newClassifier(gctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("loading classifier: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	encoder := features.NewEncoder(table)
	presenter := scenario.NewPresenter(table)

	svc, err := prediction.NewService(encoder, classifier, logger)
	if err != nil {
		return nil, fmt.Errorf("building prediction service: %w", err)
	}

	store, err := newStore(ctx, cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("opening %s session store: %w", cfg.Session.Store, err)
	}

	policy, err := session.ParseAdvancePolicy(cfg.Session.AdvancePolicy)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Closers = append(srv.Closers, store.Close)

	a := &app{server: srv}

	var sinks []session.ResolutionSink
	if cfg.Observability.MetricsEnabled || cfg.AWS.ResultsQueueURL != "" {
		awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			_ = store.Close()
			return nil, err
		}

		if cfg.Observability.MetricsEnabled {
			cw := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
				if cfg.AWS.EndpointURL != "" {
					o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				}
			})
			metrics := telemetry.NewCloudWatchMetrics(cw, cfg.Observability.MetricNamespace, logger)
			srv.Metrics = metrics
			sinks = append(sinks, metrics)
			interval := cfg.Observability.FlushInterval
			a.background = append(a.background, func(ctx context.Context) {
				metrics.Run(ctx, interval)
			})
		}

		if cfg.AWS.ResultsQueueURL != "" {
			q := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
				if cfg.AWS.EndpointURL != "" {
					o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				}
			})
			sinks = append(sinks, results.NewPublisher(q, cfg.AWS.ResultsQueueURL, logger))
		}
	}

	manager := session.NewManager(store, svc, presenter.Len(), policy,
		session.WithSinks(sinks...),
		session.WithLogger(logger),
	)

	if purger, ok := store.(session.Purger); ok && cfg.Session.TTL > 0 {
		interval := cfg.Session.PurgeInterval
		a.background = append(a.background, func(ctx context.Context) {
			runPurge(ctx, purger, interval, logger)
		})
	}

	sessionHandler := handlers.NewSessionHandler(manager, presenter, srv.Validator, logger)
	scenarioHandler := handlers.NewScenarioHandler(presenter, svc, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { r.Route("/sessions", sessionHandler.RegisterRoutes) },
		scenarioHandler.RegisterRoutes,
	)

	srv.HealthProbes = []core.HealthProbe{
		core.NewProbe("dataset", func(context.Context) error {
			if presenter.Len() == 0 {
				return errors.New("no scenarios loaded")
			}
			return nil
		}),
		core.NewOptionalProbe("model", func(ctx context.Context) error {
			if r, ok := classifier.(interface{ Ready(context.Context) error }); ok {
				return r.Ready(ctx)
			}
			return nil
		}),
		core.NewProbe("session_store", store.Ping),
	}

	srv.MountRoutes()

	logger.Info("service ready",
		"scenarios", presenter.Len(),
		"features", len(svc.Features()),
		"classifier", svc.ClassifierKind(),
		"advance_policy", string(policy),
		"sinks", len(sinks),
	)
	return a, nil
}

// newClassifier returns the remote scorer when an endpoint is configured,
// otherwise the boosted-trees artifact from disk.
func newClassifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.Classifier, error) {
	if cfg.Model.Remote() {
		scorer, err := model.NewRemoteScorer(ctx, cfg.Model.EndpointURL, cfg.Model.Timeout,
			model.WithUserAgent(cfg.Build.UserAgent()))
		if err != nil {
			return nil, err
		}
		logger.Info("remote classifier connected",
			"endpoint", cfg.Model.EndpointURL,
			"features", len(scorer.Features()),
		)
		return scorer, nil
	}

	ensemble, err := model.LoadArtifact(cfg.Model.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("model artifact loaded",
		"path", cfg.Model.Path,
		"features", len(ensemble.Features()),
	)
	return ensemble, nil
}

// newStore opens the configured session backend.
func newStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Store {
	case "postgres":
		return session.NewPostgresStore(ctx, cfg.DatabaseURL.Unmask(), cfg.TTL)
	case "redis":
		return session.NewRedisStore(ctx, cfg.RedisURL.Unmask(), cfg.TTL)
	case "sqlite":
		return session.NewSQLiteStore(ctx, cfg.SQLitePath, cfg.TTL)
	case "memory", "":
		return session.NewMemoryStore(cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// loadAWSConfig resolves credentials and region the standard SDK way.
// AWS_ENDPOINT_URL (LocalStack) is applied per client.
func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// runPurge deletes expired sessions every interval until ctx is done.
func runPurge(ctx context.Context, p session.Purger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx, time.Now().UTC())
			if err != nil {
				logger.Error("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions purged", "count", n)
			}
		}
	}
}
