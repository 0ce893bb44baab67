// Package app builds the object graph shared by the API server and the worker CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"casedocs/internal/attempts"
	"casedocs/internal/blob"
	"casedocs/internal/jobs"
	jobshandler "casedocs/internal/jobs/handler"
	jwttoken "casedocs/internal/jwt_token"
	"casedocs/internal/locks"
	lockshandler "casedocs/internal/locks/handler"
	"casedocs/internal/masterdata"
	"casedocs/internal/pdffill/generator"
	"casedocs/internal/pdffill/mapping"
	"casedocs/internal/platform/config"
	"casedocs/internal/platform/kafka"
	"casedocs/internal/platform/metrics"
	"casedocs/internal/platform/postgres"
	redisclient "casedocs/internal/platform/redis"
	httptransport "casedocs/internal/transport/http"
	"casedocs/pkg/platform/circuit"
	"casedocs/pkg/platform/middleware/auth"
)

// App holds every long-lived dependency. Close releases them in reverse order.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	DB       *sql.DB
	Redis    *redisclient.Client
	Producer *kafka.Producer
	JWT      *jwttoken.JWTService

	Templates blob.Store
	Results   blob.Store
	Files     *blob.FileHandler

	Tables    *mapping.Registry
	Records   masterdata.Store
	Generator *generator.Generator
	Jobs      *jobs.Service
	Worker    *jobs.Worker
	Locks     *locks.Service
	Attempts  attempts.Tracker

	closers []func(ctx context.Context)
}

// New connects to every configured backend. Without DATABASE_URL the stores
// are in memory, without REDIS_URL attempts are tracked in process, and
// without KAFKA_BROKERS job events are dropped.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			a.Close(context.Background())
		}
	}()

	tables, err := mapping.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("load mapping tables: %w", err)
	}
	a.Tables = tables
	a.JWT = jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	if err := a.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := a.initRedis(ctx); err != nil {
		return nil, err
	}
	if err := a.initStorage(ctx); err != nil {
		return nil, err
	}
	publisher, err := a.initEvents(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.initServices(publisher); err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

func (a *App) initDatabase(ctx context.Context) error {
	cfg := a.Config.Database
	if cfg.URL == "" {
		a.Logger.Warn("DATABASE_URL not set, using in-memory stores")
		return nil
	}
	db, err := postgres.Open(ctx, cfg.URL, postgres.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	a.DB = db
	a.closers = append(a.closers, func(context.Context) { _ = db.Close() })
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		a.Logger.Info("database migrations applied")
	}
	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	client, err := redisclient.New(ctx, a.Config.Redis)
	if err != nil {
		return err
	}
	window := a.Config.Auth.AttemptWindow
	if client == nil {
		a.Logger.Warn("REDIS_URL not set, tracking failed authentications in process")
		a.Attempts = attempts.NewInMemoryTracker(window)
		return nil
	}
	a.Redis = client
	a.closers = append(a.closers, func(context.Context) { _ = client.Close() })
	tracker, err := attempts.NewRedisTracker(client.Client, window)
	if err != nil {
		return err
	}
	a.Attempts = tracker
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	cfg := a.Config.Storage
	if cfg.Backend == config.StorageLocal {
		templates, err := blob.NewLocal(cfg.LocalRoot, cfg.TemplatesBucket, a.Config.Server.PublicURL, a.JWT)
		if err != nil {
			return err
		}
		results, err := blob.NewLocal(cfg.LocalRoot, cfg.ResultsBucket, a.Config.Server.PublicURL, a.JWT)
		if err != nil {
			return err
		}
		a.Templates, a.Results = templates, results
		a.Files = blob.NewFileHandler(cfg.LocalRoot, a.JWT, a.Logger)
		return nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) { _ = client.Close() })
	opts := []blob.GCSOption{
		blob.WithGCSLogger(a.Logger),
		blob.WithUploadRetry(cfg.UploadAttempts, cfg.UploadTimeout, time.Second),
	}
	templates, err := blob.NewGCS(client, cfg.TemplatesBucket, opts...)
	if err != nil {
		return err
	}
	results, err := blob.NewGCS(client, cfg.ResultsBucket, opts...)
	if err != nil {
		return err
	}
	a.Templates, a.Results = templates, results
	return nil
}

func (a *App) initEvents(ctx context.Context) (jobs.EventPublisher, error) {
	if !a.Config.Kafka.Enabled() {
		return jobs.NoopPublisher{}, nil
	}
	producer, err := kafka.NewProducer(a.Config.Kafka, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Producer = producer
	a.closers = append(a.closers, producer.Close)
	if err := producer.EnsureTopic(ctx); err != nil {
		return nil, err
	}
	breaker := circuit.New("kafka", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second))
	return jobs.NewBrokerPublisher(producer, jobs.WithBreaker(breaker)), nil
}

func (a *App) initServices(publisher jobs.EventPublisher) error {
	var (
		jobStore jobs.Store
		lockRepo locks.Repository
	)
	if a.DB != nil {
		a.Records = masterdata.NewPostgres(a.DB)
		jobStore = jobs.NewPostgres(a.DB)
		lockRepo = locks.NewPostgres(a.DB)
	} else {
		records, documents := masterdata.NewInMemoryStore(), locks.NewInMemoryStore()
		if path := a.Config.Database.SeedFile; path != "" {
			seed, err := LoadSeed(path)
			if err != nil {
				return err
			}
			seed.Apply(records, documents)
			a.Logger.Info("in-memory stores seeded", "file", path, "cases", len(seed.Cases), "documents", len(seed.Documents))
		}
		a.Records = records
		jobStore = jobs.NewInMemoryStore()
		lockRepo = documents
	}

	gen, err := generator.New(a.Records, a.Templates, a.Tables,
		generator.WithLogger(a.Logger),
		generator.WithMetrics(a.Metrics),
	)
	if err != nil {
		return err
	}
	a.Generator = gen

	a.Jobs, err = jobs.NewService(jobStore, jobs.WithServiceLogger(a.Logger))
	if err != nil {
		return err
	}
	a.Worker, err = jobs.NewWorker(jobStore, gen, a.Results,
		jobs.WithLogger(a.Logger),
		jobs.WithMetrics(a.Metrics),
		jobs.WithEventPublisher(publisher),
		jobs.WithMaxRetries(a.Config.Worker.MaxRetries),
		jobs.WithURLTTL(a.Config.Worker.URLTTL),
	)
	if err != nil {
		return err
	}
	a.Locks, err = locks.New(lockRepo,
		locks.WithLogger(a.Logger),
		locks.WithMetrics(a.Metrics),
		locks.WithDefaults(a.Config.Lock.AcquireTimeout, a.Config.Lock.CleanupThreshold),
	)
	return err
}

// Router builds the API handler.
func (a *App) Router() http.Handler {
	deps := httptransport.Deps{
		Logger:    a.Logger,
		Validator: jwttoken.NewPrincipalValidator(a.JWT),
		Auth: auth.Options{
			Tracker:     a.Attempts,
			MaxFailures: a.Config.Auth.MaxFailedAttempts,
			Metrics:     a.Metrics,
		},
		Modules: []httptransport.Module{
			jobshandler.New(a.Jobs, a.Worker, a.Generator, a.Results, a.Logger),
			lockshandler.New(a.Locks, a.Logger),
		},
		Checks:  a.checks(),
		Metrics: promhttp.Handler(),
	}
	if a.Files != nil {
		deps.Public = append(deps.Public, a.Files)
	}
	return httptransport.NewRouter(deps)
}

func (a *App) checks() map[string]httptransport.Check {
	checks := map[string]httptransport.Check{}
	if a.DB != nil {
		checks["postgres"] = a.DB.PingContext
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Health
	}
	if a.Producer != nil {
		checks["kafka"] = a.Producer.Ping
	}
	return checks
}

func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}
