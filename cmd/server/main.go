package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	inventoryapp "github.com/retailcore/backend/internal/application/inventory"
	salesapp "github.com/retailcore/backend/internal/application/sales"
	shiftapp "github.com/retailcore/backend/internal/application/shift"
	syncapp "github.com/retailcore/backend/internal/application/syncqueue"
	"github.com/retailcore/backend/internal/domain/sales"
	"github.com/retailcore/backend/internal/infrastructure/cache"
	"github.com/retailcore/backend/internal/infrastructure/config"
	"github.com/retailcore/backend/internal/infrastructure/event"
	"github.com/retailcore/backend/internal/infrastructure/logger"
	"github.com/retailcore/backend/internal/infrastructure/persistence"
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
		_ = log.Sync()
	}()

	log.Info("Starting sale engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

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

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run schema migration", zap.Error(err))
	}

	// Initialize repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	stockLevelRepo := persistence.NewGormStockLevelRepository(db.DB)
	stockMovementRepo := persistence.NewGormStockMovementRepository(db.DB)
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	shiftRepo := persistence.NewGormShiftRepository(db.DB)
	syncRepo := persistence.NewGormSyncQueueRepository(db.DB)

	// Transaction scopes bind each service's unit of work to the database
	inventoryScope := persistence.NewGormInventoryTransactionScope(db.DB)
	saleScope := persistence.NewGormSaleTransactionScope(db.DB)
	shiftScope := persistence.NewGormShiftTransactionScope(db.DB)

	// Initialize application services
	inventoryService := inventoryapp.NewInventoryService(inventoryScope, stockLevelRepo, stockMovementRepo, productRepo)
	saleService := salesapp.NewSaleService(saleScope, saleRepo, productRepo)
	saleService.SetNumberPrefix(cfg.Sales.NumberPrefix)
	saleService.SetDefaultTaxMode(sales.TaxMode(cfg.Sales.DefaultTaxMode))
	shiftService := shiftapp.NewShiftService(shiftScope, shiftRepo)

	// Idempotency store backs both event handlers and the sync processor.
	// Redis when reachable, in-memory fallback otherwise.
	idempotencyStore, err := cache.NewIdempotencyStore(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	lowStockHandler := inventoryapp.NewLowStockAlertHandler(log)
	eventBus.Subscribe(event.NewIdempotentHandler(lowStockHandler, idempotencyStore, log))

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	inventoryService.SetEventPublisher(eventBus)
	saleService.SetEventPublisher(eventBus)
	shiftService.SetEventPublisher(eventBus)

	// Start the sync queue processor, which replays queued offline operations
	// against the same services used for direct calls
	dispatcher := syncapp.NewServiceDispatcher(saleService, inventoryService, shiftService)
	processor := syncapp.NewProcessor(syncRepo, dispatcher, idempotencyStore, syncapp.ProcessorConfig{
		PollInterval:   cfg.Sync.PollInterval,
		TenantBatch:    cfg.Sync.TenantBatch,
		MaxConcurrency: cfg.Sync.MaxConcurrency,
		IdempotencyTTL: cfg.Sync.IdempotencyTTL,
	}, log)
	if cfg.Sync.ProcessorEnabled {
		if err := processor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync queue processor", zap.Error(err))
		}
		defer func() {
			if err := processor.Stop(context.Background()); err != nil {
				log.Error("Error stopping sync queue processor", zap.Error(err))
			}
		}()
	} else {
		log.Info("Sync queue processor disabled by configuration")
	}

	// HTTP surface is limited to liveness and readiness probes
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logger.Recovery(log))
	engine.Use(logger.AccessLog(log))
	engine.GET("/health", healthHandler(db))
	engine.GET("/ready", readyHandler(db))

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

// healthHandler reports process liveness and database reachability
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

// readyHandler gates traffic on the database connection being usable
func readyHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ready": true})
	}
}
