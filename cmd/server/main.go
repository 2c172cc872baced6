package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	assetapp "github.com/dcasset/backend/internal/application/asset"
	batchapp "github.com/dcasset/backend/internal/application/batch"
	workorderapp "github.com/dcasset/backend/internal/application/workorder"
	"github.com/dcasset/backend/internal/domain/workorder"
	"github.com/dcasset/backend/internal/infrastructure/audit"
	"github.com/dcasset/backend/internal/infrastructure/config"
	"github.com/dcasset/backend/internal/infrastructure/event"
	"github.com/dcasset/backend/internal/infrastructure/logger"
	"github.com/dcasset/backend/internal/infrastructure/persistence"
	"github.com/dcasset/backend/internal/infrastructure/storage"
	"github.com/dcasset/backend/internal/infrastructure/telemetry"
	"github.com/dcasset/backend/internal/interfaces/http/handler"
	"github.com/dcasset/backend/internal/interfaces/http/middleware"
	"github.com/dcasset/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
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

	log.Info("Starting Datacenter Asset Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracer provider
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Register database query tracing
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Initialize repositories
	assetRepo := persistence.NewGormAssetRepository(db.DB)
	workOrderRepo := persistence.NewGormWorkOrderRepository(db.DB)
	claimRepo := persistence.NewGormClaimRepository(db.DB)
	batchJobRepo := persistence.NewGormBatchJobRepository(db.DB)
	txnScope := persistence.NewGormTransactionScope(db.DB)

	// Work order type registry with payload validation
	validate := validator.New()
	registry, err := workorder.NewDefaultRegistry(validate)
	if err != nil {
		log.Fatal("Failed to build work order registry", zap.Error(err))
	}

	// Error report storage (S3-compatible), optional
	var reportStore batchapp.ReportStore
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3ReportStore(&cfg.Storage)
		if err != nil {
			log.Fatal("Failed to initialize report store", zap.Error(err))
		}
		if err := s3Store.EnsureBucket(context.Background()); err != nil {
			log.Fatal("Failed to ensure report bucket", zap.Error(err))
		}
		reportStore = s3Store
		log.Info("Report store initialized", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		log.Warn("No storage bucket configured, import error reports will not be persisted to object storage")
	}

	// Initialize application services
	ledgerQueryService := assetapp.NewLedgerQueryService(assetRepo)
	workOrderService := workorderapp.NewWorkOrderService(workOrderRepo, assetRepo, claimRepo, registry, txnScope)
	importService := batchapp.NewImportService(batchJobRepo, assetRepo, reportStore)
	importService.SetWorkers(cfg.Import.Workers)

	// Initialize event bus
	eventBus := event.NewInMemoryEventBus(log)

	// Audit trail subscribes to every domain event
	if cfg.Audit.Enabled {
		auditTrail, err := audit.NewRedisAuditTrail(&cfg.Redis, &cfg.Audit, log)
		if err != nil {
			log.Fatal("Failed to initialize audit trail", zap.Error(err))
		}
		defer func() {
			if err := auditTrail.Close(); err != nil {
				log.Error("Error closing audit trail", zap.Error(err))
			}
		}()
		eventBus.Subscribe(auditTrail)
		log.Info("Audit trail registered", zap.String("stream", cfg.Audit.Stream))
	}

	// Start event bus
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	workOrderService.SetEventPublisher(eventBus)
	importService.SetEventPublisher(eventBus)

	// Initialize HTTP handlers
	assetHandler := handler.NewAssetHandler(ledgerQueryService)
	workOrderHandler := handler.NewWorkOrderHandler(workOrderService)
	batchImportHandler := handler.NewBatchImportHandler(importService, cfg.Import.MaxFileSize)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

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
	// 4. Tracing - OpenTelemetry spans
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoints (outside API versioning)
	engine.GET("/health", healthHandler(db))
	engine.GET("/ready", healthHandler(db))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Asset ledger (read-only; all mutations go through work orders and imports)
	assetRoutes := router.NewDomainGroup("assets", "/assets")
	assetRoutes.GET("", assetHandler.List)
	assetRoutes.GET("/lookup", assetHandler.GetBySerialNumber)
	assetRoutes.GET("/:tag", assetHandler.GetByTag)

	// Work order lifecycle
	workOrderRoutes := router.NewDomainGroup("work-orders", "/work-orders")
	workOrderRoutes.POST("", workOrderHandler.Create)
	workOrderRoutes.GET("", workOrderHandler.List)
	workOrderRoutes.GET("/types", workOrderHandler.Types)
	workOrderRoutes.GET("/number/:number", workOrderHandler.GetByNumber)
	workOrderRoutes.GET("/:id", workOrderHandler.GetByID)
	workOrderRoutes.POST("/:id/execute", workOrderHandler.Execute)
	workOrderRoutes.POST("/:id/complete", workOrderHandler.Complete)
	workOrderRoutes.POST("/:id/cancel", workOrderHandler.Cancel)

	// Batch CSV imports
	batchImportRoutes := router.NewDomainGroup("batch-imports", "/batch-imports")
	batchImportRoutes.POST("", batchImportHandler.Upload)
	batchImportRoutes.GET("", batchImportHandler.List)
	batchImportRoutes.GET("/:id", batchImportHandler.GetByID)
	batchImportRoutes.GET("/:id/report", batchImportHandler.DownloadReport)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	// Register all domain groups
	r.Register(assetRoutes).
		Register(workOrderRoutes).
		Register(batchImportRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

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

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
