package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	financeapp "github.com/crechebooks/backend/internal/application/finance"
	"github.com/crechebooks/backend/internal/infrastructure/cache"
	"github.com/crechebooks/backend/internal/infrastructure/config"
	"github.com/crechebooks/backend/internal/infrastructure/event"
	"github.com/crechebooks/backend/internal/infrastructure/logger"
	"github.com/crechebooks/backend/internal/infrastructure/notification"
	"github.com/crechebooks/backend/internal/infrastructure/persistence"
	"github.com/crechebooks/backend/internal/infrastructure/scheduler"
	"github.com/crechebooks/backend/internal/infrastructure/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceVersion = "1.0.0"

func main() {
	var once bool
	flag.BoolVar(&once, "once", false, "Run a single escalation sweep and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    serviceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    serviceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    serviceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = telemetry.BridgeLogger(log, cfg.Telemetry.ServiceName, loggerProvider, logger.ParseLevel(cfg.Log.Level))
	defer shutdownTelemetry(log, tracerProvider, meterProvider, loggerProvider)

	log.Info("Starting CrecheBooks worker",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("timezone", cfg.App.Timezone),
	)

	location, err := cfg.App.Location()
	if err != nil {
		log.Fatal("Invalid business timezone", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}
	if stats, err := db.Stats(); err == nil {
		log.Info("Database connected successfully",
			zap.Int("max_open_connections", stats.MaxOpenConnections),
			zap.Int("open_connections", stats.OpenConnections),
		)
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(ctx, db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	// Repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	reminderRepo := persistence.NewGormReminderRepository(db.DB)
	parentRepo := persistence.NewGormParentRepository(db.DB)
	childRepo := persistence.NewGormChildRepository(db.DB)
	profileCache := cache.NewCrecheProfileCache(
		persistence.NewGormCrecheProfileRepository(db.DB),
		cache.WithProfileTTL(cfg.Reminder.ProfileTTL),
		cache.WithProfileCacheLogger(log),
	)

	metrics, err := telemetry.NewBookkeepingMetrics(telemetry.BookkeepingMetricsConfig{
		Meter:           meterProvider.Meter("crechebooks"),
		Logger:          log,
		ArrearsProvider: invoiceRepo,
	})
	if err != nil {
		log.Fatal("Failed to initialize bookkeeping metrics", zap.Error(err))
	}
	if meterProvider.IsEnabled() {
		metrics.StartPeriodicCollection(ctx, 5*time.Minute)
		defer metrics.Stop()
	}

	// Escalation lock
	locker, closeLocker, err := cache.NewRunLockerFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateLocker()
	if err != nil {
		log.Fatal("Failed to create escalation locker", zap.Error(err))
	}
	defer func() {
		if err := closeLocker(); err != nil {
			log.Error("Error closing escalation locker", zap.Error(err))
		}
	}()

	// Events
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditLogHandler(log))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Channels
	locale, err := cfg.Reminder.LocaleTag()
	if err != nil {
		log.Fatal("Invalid reminder locale", zap.Error(err))
	}
	renderer, err := notification.NewTemplateRenderer(notification.WithLocale(locale))
	if err != nil {
		log.Fatal("Failed to load reminder templates", zap.Error(err))
	}
	reminderOpts := []financeapp.ReminderServiceOption{
		financeapp.WithRunLocker(locker, cfg.Reminder.LockTTL),
		financeapp.WithReminderConcurrency(cfg.Reminder.Concurrency),
		financeapp.WithReminderLocation(location),
		financeapp.WithReminderLogger(log),
		financeapp.WithReminderMetrics(metrics),
		financeapp.WithReminderEventPublisher(eventBus),
	}
	if cfg.Email.Enabled {
		emailAdapter, err := notification.NewEmailAdapter(&notification.EmailConfig{
			BaseURL:    cfg.Email.BaseURL,
			APIKey:     cfg.Email.APIKey,
			From:       cfg.Email.From,
			Timeout:    cfg.Email.Timeout,
			MaxRetries: cfg.Email.MaxRetries,
		}, log)
		if err != nil {
			log.Fatal("Failed to create email adapter", zap.Error(err))
		}
		reminderOpts = append(reminderOpts, financeapp.WithEmailSender(emailAdapter))
	}
	if cfg.WhatsApp.Enabled {
		whatsappAdapter, err := notification.NewWhatsAppAdapter(&notification.WhatsAppConfig{
			BaseURL:       cfg.WhatsApp.BaseURL,
			AccessToken:   cfg.WhatsApp.AccessToken,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			RatePerSecond: cfg.WhatsApp.RatePerSecond,
			Burst:         cfg.WhatsApp.Burst,
			Timeout:       cfg.WhatsApp.Timeout,
			MaxRetries:    cfg.WhatsApp.MaxRetries,
		}, log)
		if err != nil {
			log.Fatal("Failed to create WhatsApp adapter", zap.Error(err))
		}
		reminderOpts = append(reminderOpts, financeapp.WithMessageSender(whatsappAdapter))
	}

	// Services
	arrearsService := financeapp.NewArrearsService(invoiceRepo, parentRepo,
		financeapp.WithArrearsLocation(location),
		financeapp.WithArrearsLogger(log),
	)
	reminderService := financeapp.NewReminderService(
		invoiceRepo, reminderRepo, parentRepo, childRepo,
		profileCache, renderer, arrearsService,
		reminderOpts...,
	)

	escalation := scheduler.NewEscalationScheduler(reminderService, invoiceRepo, scheduler.EscalationSchedulerConfig{
		Enabled:       cfg.Scheduler.Enabled,
		Interval:      cfg.Scheduler.Interval,
		Workers:       cfg.Scheduler.Workers,
		TenantTimeout: cfg.Scheduler.TenantTimeout,
		RunOnStart:    true,
	}, log, scheduler.WithSchedulerMetrics(metrics))

	if once {
		summary, err := escalation.RunOnce(ctx)
		if err != nil {
			log.Fatal("Escalation sweep failed", zap.Error(err))
		}
		log.Info("Escalation sweep finished",
			zap.Int("tenants", summary.Tenants),
			zap.Int("failed", summary.Failed),
			zap.Int("skipped", summary.Skipped),
		)
		return
	}

	if err := escalation.Start(ctx); err != nil {
		log.Fatal("Failed to start escalation scheduler", zap.Error(err))
	}

	<-ctx.Done()
	log.Info("Shutting down worker...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := escalation.Stop(stopCtx); err != nil {
		log.Error("Escalation scheduler forced to stop", zap.Error(err))
	}

	log.Info("Worker exited gracefully")
}

func shutdownTelemetry(log *zap.Logger, tp *telemetry.TracerProvider, mp *telemetry.MeterProvider, lp *telemetry.LoggerProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := lp.Shutdown(ctx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}
	if err := mp.Shutdown(ctx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
}
