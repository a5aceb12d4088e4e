package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"commissionflow/internal/domain/audit"
	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/platform/commissionapi"
	"commissionflow/internal/platform/config"
	"commissionflow/internal/platform/db"
	"commissionflow/internal/platform/jobs"
	"commissionflow/internal/platform/metrics"
	"commissionflow/internal/platform/querier"
	audithandler "commissionflow/internal/transport/http/handlers/audit"
	commissionhandler "commissionflow/internal/transport/http/handlers/commissions"
	sessionhandler "commissionflow/internal/transport/http/handlers/session"
	workflowhandler "commissionflow/internal/transport/http/handlers/workflow"
	"commissionflow/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Logger  zerolog.Logger
	Metrics *metrics.Collector
	Jobs    *jobs.Service
}

// Deps are the collaborators the router needs. Nil optional fields disable the
// matching feature.
type Deps struct {
	Commissions commissionhandler.CommissionAPI
	Labels      *workflow.LabelCatalog
	Audit       *audit.Service
	Idempotency *middleware.IdempotencyStore
	Metrics     *metrics.Collector
	Logger      zerolog.Logger
	Ready       func(ctx context.Context) error
}

func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}
	if cfg.MetricsEnabled {
		app.Metrics = metrics.New()
	}

	var store querier.Querier
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db connect failed: %w", err)
		}
		app.DB = pool
		store = pool
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, db.Migrations()); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrations failed: %w", err)
			}
		}
	} else {
		logger.Warn().Msg("DATABASE_URL not set; decision audit and idempotency replay disabled")
	}

	labels, err := loadLabels(cfg.LabelsFile)
	if err != nil {
		app.Close()
		return nil, err
	}

	client, err := commissionapi.New(cfg.CommissionAPIURL, cfg.CommissionAPITimeout, commissionapi.WithRecorder(app.Metrics))
	if err != nil {
		app.Close()
		return nil, err
	}

	decisions := audit.New(store)
	idempotency := middleware.NewIdempotencyStore(store)
	if store != nil {
		app.Jobs = newMaintenance(cfg, store, logger, app.Metrics, decisions, idempotency)
	}

	app.Router = NewRouter(cfg, Deps{
		Commissions: client,
		Labels:      labels,
		Audit:       decisions,
		Idempotency: idempotency,
		Metrics:     app.Metrics,
		Logger:      logger,
		Ready:       app.ready,
	})
	return app, nil
}

func newMaintenance(cfg config.Config, store querier.Querier, logger zerolog.Logger, collector *metrics.Collector, decisions *audit.Service, idempotency *middleware.IdempotencyStore) *jobs.Service {
	svc := jobs.New(store, logger.With().Str("component", "jobs").Logger(), cfg.MaintenanceInterval)
	svc.Recorder = collector
	svc.Schedule(jobs.JobIdempotencyPurge, jobs.Retention(cfg.IdempotencyTTL, idempotency.Purge))
	if cfg.AuditRetention > 0 {
		svc.Schedule(jobs.JobAuditRetention, jobs.Retention(cfg.AuditRetention, decisions.Prune))
	}
	return svc
}

func loadLabels(path string) (*workflow.LabelCatalog, error) {
	if path == "" {
		return workflow.DefaultLabels(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels file: %w", err)
	}
	defer f.Close()
	labels, err := workflow.LoadLabels(f)
	if err != nil {
		return nil, fmt.Errorf("load labels file %s: %w", path, err)
	}
	return labels, nil
}

func (a *App) ready(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Ping(ctx)
}

func NewRouter(cfg config.Config, deps Deps) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(deps.Logger, deps.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute, middleware.MutationsOnly()))
		r.Use(middleware.IdempotencyKey)

		sessionhandler.NewHandler().RegisterRoutes(r)
		workflowhandler.NewHandler(deps.Labels).RegisterRoutes(r)
		commissionhandler.NewHandler(deps.Commissions, deps.Labels, deps.Audit, deps.Metrics, deps.Idempotency).RegisterRoutes(r)
		audithandler.NewHandler(deps.Audit).RegisterRoutes(r)
	})

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.Jobs != nil {
		a.Jobs.Start(gctx)
	}
	g.Go(func() error {
		a.Logger.Info().Str("addr", a.Config.Addr).Msg("commissionflow gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := a.Config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		a.Logger.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
