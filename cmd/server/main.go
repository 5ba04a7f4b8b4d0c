package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	eventapp "github.com/facturio/backend/internal/application/event"
	invoicingapp "github.com/facturio/backend/internal/application/invoicing"
	reportingapp "github.com/facturio/backend/internal/application/reporting"
	"github.com/facturio/backend/internal/domain/fiscal"
	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/infrastructure/cache"
	"github.com/facturio/backend/internal/infrastructure/config"
	"github.com/facturio/backend/internal/infrastructure/event"
	"github.com/facturio/backend/internal/infrastructure/facturx"
	"github.com/facturio/backend/internal/infrastructure/logger"
	"github.com/facturio/backend/internal/infrastructure/pdp"
	"github.com/facturio/backend/internal/infrastructure/persistence"
	"github.com/facturio/backend/internal/infrastructure/storage"
	"github.com/facturio/backend/internal/infrastructure/telemetry"
	"github.com/facturio/backend/internal/interfaces/http/handler"
	"github.com/facturio/backend/internal/interfaces/http/middleware"
	"github.com/facturio/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Facturio Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize telemetry providers (no-ops when disabled)
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.ProfilingEndpoint,
		ApplicationName:   cfg.Telemetry.ServiceName,
		ProfileCPU:        true,
		ProfileInuseSpace: true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// Database query tracing and connection pool metrics
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DBMetricsConfig{
		Enabled:            cfg.Telemetry.Enabled,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	// Business metrics (invoice finalizations, sequence waits, PDP outcomes)
	var businessMetrics *telemetry.BusinessMetrics
	if cfg.Telemetry.Enabled && meterProvider.IsEnabled() {
		businessMetrics, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:          meterProvider.Meter("business"),
			Logger:         log,
			OutboxProvider: telemetry.NewGormOutboxMetricsProvider(db.DB),
		})
		if err != nil {
			log.Warn("Failed to initialize business metrics", zap.Error(err))
		} else {
			businessMetrics.StartPeriodicCollection(context.Background(), time.Minute)
			defer businessMetrics.Stop()
		}
	}

	// Initialize repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	companyRepo := persistence.NewGormCompanyRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	txRepos := persistence.NewGormRepositories()

	// Initialize event serializer and register all event types
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)

	// Outbox publisher persists domain events in the finalization transaction
	outboxPublisher := event.NewOutboxPublisher(eventSerializer)

	// Resolve the issuing company. Multi-company installations read companies
	// from the database through a cache; mono-company installations use the
	// single implicit company described in the fiscal config block.
	companyProvider, err := buildCompanyProvider(cfg, companyRepo, log)
	if err != nil {
		log.Fatal("Failed to configure company provider", zap.Error(err))
	}

	// PDP connector, wrapped so retried deliveries never transmit twice
	connector, err := pdp.NewConnector(cfg.PDP, log)
	if err != nil {
		log.Fatal("Failed to configure PDP connector", zap.Error(err))
	}
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	connector = pdp.NewIdempotentConnector(connector, idempotencyStore, pdp.WithIdempotentLogger(log))
	log.Info("PDP connector ready", zap.String("connector", cfg.PDP.Connector))

	// Archive storage for FEC exports
	archiveStorage, err := buildArchiveStorage(cfg, log)
	if err != nil {
		log.Fatal("Failed to configure archive storage", zap.Error(err))
	}

	// Initialize application services
	invoiceOpts := []invoicingapp.InvoiceServiceOption{
		invoicingapp.WithLogger(log),
		invoicingapp.WithSequencePadding(cfg.Fiscal.SequencePadding),
	}
	if businessMetrics != nil {
		invoiceOpts = append(invoiceOpts, invoicingapp.WithBusinessMetrics(businessMetrics))
	}
	invoiceService := invoicingapp.NewInvoiceService(
		db, txRepos, invoiceRepo, companyProvider, outboxPublisher, invoiceOpts...,
	)

	ereportingService := reportingapp.NewEReportingService(
		invoiceRepo, connector, reportingFrequency(cfg.Reporting.Frequency),
		reportingapp.WithEReportingLogger(log),
	)
	fecExportService := reportingapp.NewFECExportService(
		invoiceRepo, companyProvider, archiveStorage,
		reportingapp.WithFECLogger(log),
	)

	// Initialize event bus and subscribe the transmission handler:
	// finalized B2B invoices leave through the PDP as Factur-X
	eventBus := event.NewInMemoryEventBus(log)
	transmissionOpts := []invoicingapp.TransmissionHandlerOption{
		invoicingapp.WithTransmissionLogger(log),
	}
	if businessMetrics != nil {
		transmissionOpts = append(transmissionOpts, invoicingapp.WithTransmissionMetrics(businessMetrics))
	}
	transmissionHandler := invoicingapp.NewTransmissionHandler(
		invoiceService, facturx.NewBuilder(), connector, transmissionOpts...,
	)
	eventBus.Subscribe(transmissionHandler)
	log.Info("Event handlers registered",
		zap.Strings("transmission_events", transmissionHandler.EventTypes()),
	)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Outbox processor delivers persisted events to the bus with retries
	if cfg.Event.ProcessorEnabled {
		outboxProcessorConfig := event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
			CleanupInterval:  time.Hour,
		}
		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, outboxProcessorConfig, log)
		if err := outboxProcessor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", outboxProcessorConfig.BatchSize),
			zap.Duration("poll_interval", outboxProcessorConfig.PollInterval),
		)
	}

	// Initialize HTTP handlers
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, facturx.NewBuilder())
	reportingHandler := handler.NewReportingHandler(ereportingService, fecExportService)
	systemHandler := handler.NewSystemHandler(db)
	outboxHandler := handler.NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, log))

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. CompanyContext - Resolve the issuing company from X-Company-ID
	// 8. Telemetry - Tracing, metrics and profiling labels (if enabled)
	// 9. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.CompanyContext())

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
		engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       true,
		}))
	}
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.Profiling())
	}

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Invoicing domain (invoices, credit notes, lifecycle operations)
	invoicingRoutes := router.NewDomainGroup("invoicing", "/invoices")
	invoicingRoutes.POST("", invoiceHandler.Create)
	invoicingRoutes.GET("", invoiceHandler.List)
	invoicingRoutes.GET("/number/:number", invoiceHandler.GetByNumber)
	invoicingRoutes.GET("/:id", invoiceHandler.GetByID)
	invoicingRoutes.PUT("/:id", invoiceHandler.Update)
	invoicingRoutes.POST("/:id/lines", invoiceHandler.AddLine)
	invoicingRoutes.DELETE("/:id/lines/:lineId", invoiceHandler.RemoveLine)
	invoicingRoutes.POST("/:id/finalize", invoiceHandler.Finalize)
	invoicingRoutes.POST("/:id/send", invoiceHandler.MarkSent)
	invoicingRoutes.POST("/:id/payment", invoiceHandler.RecordPayment)
	invoicingRoutes.POST("/:id/cancel", invoiceHandler.Cancel)
	invoicingRoutes.GET("/:id/facturx", invoiceHandler.DownloadFacturX)

	creditNoteRoutes := router.NewDomainGroup("credit-notes", "/credit-notes")
	creditNoteRoutes.POST("", invoiceHandler.CreateCreditNote)

	// Reporting domain (e-reporting summaries and submissions)
	reportingRoutes := router.NewDomainGroup("reporting", "/reporting")
	reportingRoutes.GET("/summaries", reportingHandler.ListSummaries)
	reportingRoutes.POST("/submissions", reportingHandler.SubmitPeriod)

	// Exports domain (FEC fiscal-year archives)
	exportRoutes := router.NewDomainGroup("exports", "/exports")
	exportRoutes.GET("/fec/:year", reportingHandler.ExportFEC)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	systemRoutes.GET("/outbox/stats", outboxHandler.GetStats)
	systemRoutes.GET("/outbox/dead", outboxHandler.GetDeadLetterEntries)
	systemRoutes.POST("/outbox/dead/retry-all", outboxHandler.RetryAllDeadEntries)
	systemRoutes.GET("/outbox/:id", outboxHandler.GetEntry)
	systemRoutes.POST("/outbox/:id/retry", outboxHandler.RetryDeadEntry)

	r.Register(invoicingRoutes).
		Register(creditNoteRoutes).
		Register(reportingRoutes).
		Register(exportRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// buildCompanyProvider wires the company resolution strategy for the
// configured deployment mode.
func buildCompanyProvider(cfg *config.Config, companies invoicing.CompanyRepository, log *zap.Logger) (invoicing.CompanyProvider, error) {
	if cfg.Fiscal.MultiCompany {
		var companyCache cache.CompanyCache
		redisCache, err := cache.NewRedisCompanyCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis unavailable, using in-memory company cache", zap.Error(err))
			companyCache = cache.NewInMemoryCompanyCache(0)
		} else {
			companyCache = redisCache
		}
		provider := cache.NewCachingCompanyProvider(
			persistence.NewGormCompanyProvider(companies),
			companyCache,
			cache.WithProviderLogger(log),
		)
		log.Info("Multi-company mode enabled")
		return provider, nil
	}

	yearConfig, err := fiscal.NewYearConfig(time.Month(cfg.Fiscal.YearStartMonth), cfg.Fiscal.YearStartDay)
	if err != nil {
		return nil, err
	}

	legalEntity, err := invoicing.NewParty(cfg.Fiscal.CompanyName)
	if err != nil {
		return nil, err
	}
	if cfg.Fiscal.CompanySIREN != "" {
		legalEntity, err = legalEntity.WithSIREN(cfg.Fiscal.CompanySIREN)
		if err != nil {
			return nil, err
		}
	}
	legalEntity.VATNumber = cfg.Fiscal.CompanyVAT

	company, err := invoicing.NewCompany(cfg.Fiscal.CompanyName, legalEntity, yearConfig)
	if err != nil {
		return nil, err
	}
	log.Info("Mono-company mode",
		zap.String("company", company.Name),
		zap.String("siren", legalEntity.SIREN),
	)
	return invoicing.NewStaticCompanyProvider(company), nil
}

// buildArchiveStorage selects the FEC archive backend.
func buildArchiveStorage(cfg *config.Config, log *zap.Logger) (reportingapp.ArchiveStorage, error) {
	if cfg.Storage.Provider == "s3" {
		return storage.NewS3ArchiveStorage(&cfg.Storage, storage.WithLogger(log))
	}
	return storage.NewStubArchiveStorage(), nil
}

// reportingFrequency maps the config value onto the fiscal calendar type.
func reportingFrequency(freq string) fiscal.Frequency {
	if freq == "quarterly" {
		return fiscal.FrequencyQuarterly
	}
	return fiscal.FrequencyMonthly
}
