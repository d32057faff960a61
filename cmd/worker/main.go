// Command worker runs the progress notification engine.
//
// On weekday evenings it evaluates every enrolled student, queues at most
// one message per student into the outbox, and serves the operations API
// (health, decision preview, delivery callback, manual runs).
//
// Usage:
//
//	worker            run the scheduler and the HTTP API until SIGTERM
//	worker -once      evaluate today's population once and exit
//	worker -once -date 2024-09-09
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/pace-notifier/config"
	"github.com/alem-hub/pace-notifier/internal/application/command"
	"github.com/alem-hub/pace-notifier/internal/application/query"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/external/placement"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/persistence/outbox"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/reporting"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/scheduler"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/alem-hub/pace-notifier/internal/interface/http"
	"github.com/alem-hub/pace-notifier/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "evaluate the population once and exit")
	date := flag.String("date", "", "evaluation date (YYYY-MM-DD) for -once; defaults to today")
	flag.Parse()

	if err := run(*once, *date); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(once bool, date string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	reporter := reporting.NewReporter(cfg.App, cfg.Observability)
	defer reporter.Close()

	base := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
		Attrs: []slog.Attr{
			slog.String("service", cfg.App.Name),
			slog.String("version", cfg.App.Version),
		},
	})
	log := slog.New(reporter.Handler(base.Handler()))
	slog.SetDefault(log)

	log.Info("starting worker",
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
		"dry_run", cfg.Messaging.DryRun,
		"error_reporting", reporter != nil,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRES (course records, delivery log)
	// ─────────────────────────────────────────────────────────────────────────
	db, err := postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(db).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	progressRepo := postgres.NewProgressRepository(db)
	historyRepo := postgres.NewHistoryRepository(db)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (optional: history cache, run lock)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		cache, err = redis.NewCache(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, continuing without history cache and with a local run lock", logger.Err(err))
			cache = nil
		} else {
			defer cache.Close()
			log.Info("redis connection established")
		}
	}
	history := redis.NewHistoryCache(historyRepo, cache, cfg.Redis.HistoryTTL, log)
	runLock := redis.NewRunLock(cache, cfg.Redis.RunLockTTL)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. OUTBOX AND PLACEMENT SERVICE
	// ─────────────────────────────────────────────────────────────────────────
	store, err := outbox.Open(ctx, cfg.Outbox, log)
	if err != nil {
		return fmt.Errorf("failed to open outbox: %w", err)
	}
	defer store.Close()

	var placementSvc command.PlacementService
	var placementClient *placement.Client
	if cfg.Placement.BaseURL != "" {
		placementClient = placement.NewClient(cfg.Placement, log)
		placementSvc = placementClient
	} else {
		log.Warn("PLACEMENT_BASE_URL not set, students without the prerequisite get zero attempts")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ENGINE AND HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	engines, err := command.NewEngineSet(command.EngineConfigFrom(cfg.Messaging))
	if err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}

	evaluate := command.NewEvaluateStudentHandler(
		engines,
		progressRepo,
		history,
		placementSvc,
		store,
		historyRepo,
		cfg.Features,
		log,
		command.EvaluateStudentHandlerConfig{DryRun: cfg.Messaging.DryRun},
	)
	delivery := command.NewRecordDeliveryHandler(store, historyRepo, history, log)
	preview := query.NewPreviewDecisionHandler(progressRepo, evaluate, cfg.App.Location)

	evaluateJob := jobs.NewEvaluateNotificationsJob(progressRepo, evaluate, runLock, log, jobs.EvaluateNotificationsConfig{
		Concurrency: cfg.Messaging.Concurrency,
		Location:    cfg.App.Location,
	})
	requeueJob := jobs.NewRequeueOutboxJob(store, cfg.Outbox.StaleAfter, log)

	if once {
		return runOnce(ctx, log, evaluateJob, date)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:            log,
		Location:          cfg.App.Location,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
	})

	var evaluateSchedule scheduler.Schedule
	if cfg.Scheduler.Enabled {
		expr, err := scheduler.ParseCronExpression(cfg.Scheduler.EvaluateCron)
		if err != nil {
			return fmt.Errorf("invalid SCHEDULER_EVALUATE_CRON: %w", err)
		}
		evaluateSchedule = expr
	}
	if err := sched.Register(evaluateJob, evaluateSchedule); err != nil {
		return err
	}
	if err := sched.Register(requeueJob, scheduler.Every(cfg.Scheduler.RequeueInterval)); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. OPERATIONS API
	// ─────────────────────────────────────────────────────────────────────────
	var serverErr <-chan error
	var server *httpapi.Server
	if cfg.HTTP.Enabled {
		health := httpapi.NewHealthChecker(cfg.App.Version)
		health.AddCheck("postgres", httpapi.PingCheck(db))
		health.AddCheck("outbox", httpapi.PingCheck(store))
		if cache != nil {
			health.AddCheck("redis", httpapi.PingCheck(cache))
		}
		if placementClient != nil {
			health.AddCheck("placement", httpapi.BreakerCheck(func() string { return placementClient.State().String() }))
		}

		server = httpapi.NewServer(cfg.HTTP, httpapi.Dependencies{
			Preview:  preview,
			Delivery: delivery,
			Runs:     evaluateJob,
			Jobs:     sched,
			Health:   health,
			Logger:   log,
		})
		serverErr = server.StartAsync()
	}

	log.Info("worker is running",
		"evaluate_schedule", scheduleName(evaluateSchedule),
		"http", cfg.HTTP.Enabled,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error("http server failed", logger.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http server shutdown failed", logger.Err(err))
		}
	}
	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		log.Warn("scheduler shutdown failed", logger.Err(err))
	}

	log.Info("shutdown completed")
	return nil
}

// runOnce evaluates a single day and prints the report summary.
func runOnce(ctx context.Context, log *slog.Logger, job *jobs.EvaluateNotificationsJob, date string) error {
	var today time.Time
	if date != "" {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return fmt.Errorf("invalid -date: %w", err)
		}
		today = d
	}

	report, err := job.Execute(ctx, today)
	if err != nil {
		return err
	}
	log.Info("run finished",
		"run_id", report.RunID,
		"today", report.Today,
		"population", report.Population,
		"sent", report.Sent,
		"suppressed", report.Suppressed,
		"errored", report.Errored,
		"degraded", report.Degraded,
	)
	return nil
}

func scheduleName(s scheduler.Schedule) string {
	if s == nil {
		return "manual"
	}
	return s.String()
}
