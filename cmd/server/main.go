package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cobranzas/backend/internal/application/console"
	"github.com/cobranzas/backend/internal/domain/shared"
	"github.com/cobranzas/backend/internal/infrastructure/aria"
	"github.com/cobranzas/backend/internal/infrastructure/auth"
	"github.com/cobranzas/backend/internal/infrastructure/cache"
	"github.com/cobranzas/backend/internal/infrastructure/config"
	"github.com/cobranzas/backend/internal/infrastructure/contact"
	"github.com/cobranzas/backend/internal/infrastructure/logger"
	"github.com/cobranzas/backend/internal/infrastructure/migration"
	"github.com/cobranzas/backend/internal/infrastructure/notification"
	"github.com/cobranzas/backend/internal/infrastructure/persistence"
	"github.com/cobranzas/backend/internal/infrastructure/telemetry"
	"github.com/cobranzas/backend/internal/infrastructure/tiendanube"
	"github.com/cobranzas/backend/internal/interfaces/http/handler"
	"github.com/cobranzas/backend/internal/interfaces/http/middleware"
	"github.com/cobranzas/backend/internal/interfaces/http/router"
)

//	@title			Collections Console API
//	@version		1.0
//	@description	Operator console for financing storefront orders through the Aria credit backend

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Operator token. Format: "Bearer {token}"

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting collections console",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
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
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	var consoleMetrics console.Metrics
	if meterProvider.IsEnabled() {
		m, err := telemetry.NewConsoleMetrics(meterProvider.Meter("collections-console"))
		if err != nil {
			log.Warn("Console metrics unavailable", zap.Error(err))
		} else {
			consoleMetrics = m
		}
	}

	// Database (audit trail)
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
		persistence.WithSlowQueryThreshold(cfg.Telemetry.DBSlowQueryThresh),
		persistence.WithTracing(cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.AutoMigrate {
		if err := migrateUp(db, cfg.Database.Driver, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Action guard: charged markers and per-order locks
	store, err := cache.NewStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create action guard", zap.Error(err))
	}
	defer func() {
		_ = store.Close()
	}()

	// Upstream clients
	storefrontCfg := tiendanube.NewConfig(cfg.Storefront.StoreID, cfg.Storefront.AccessToken)
	storefrontCfg.APIBaseURL = cfg.Storefront.BaseURL
	storefrontCfg.UserAgent = cfg.Storefront.UserAgent
	storefrontCfg.TimeoutSeconds = int(cfg.Storefront.Timeout / time.Second)
	storefrontCfg.PerPage = cfg.Storefront.PerPage
	storefrontClient, err := tiendanube.NewClient(storefrontCfg, log)
	if err != nil {
		log.Fatal("Failed to create storefront client", zap.Error(err))
	}

	financingClient, err := aria.NewClient(&aria.Config{
		BaseURL:           cfg.Financing.BaseURL,
		APIKey:            cfg.Financing.APIKey,
		TimeoutSeconds:    int(cfg.Financing.Timeout / time.Second),
		RequestsPerSecond: cfg.Financing.RequestsPerSecond,
		Burst:             cfg.Financing.Burst,
		Installments:      cfg.Financing.Installments,
		OperatorUserID:    cfg.Financing.OperatorUserID,
	}, log)
	if err != nil {
		log.Fatal("Failed to create financing client", zap.Error(err))
	}

	// Customer emails
	notifier, err := notification.NewNotifier(newMailer(cfg, log),
		notification.WithStoreName(cfg.App.StoreName),
		notification.WithBankTransfer(notification.BankTransfer{
			Holder:   cfg.BankTransfer.Holder,
			BankName: cfg.BankTransfer.BankName,
			CBU:      cfg.BankTransfer.CBU,
			Alias:    cfg.BankTransfer.Alias,
			TaxID:    cfg.BankTransfer.TaxID,
		}),
		notification.WithLogger(log),
	)
	if err != nil {
		log.Fatal("Failed to create notifier", zap.Error(err))
	}

	service := console.NewService(console.ServiceConfig{
		Orders:       storefrontClient,
		Customers:    financingClient,
		Ledger:       financingClient,
		Notifier:     notifier,
		Links:        contact.NewLinkBuilder(cfg.App.PhoneRegion),
		Guard:        store,
		Locker:       store,
		Audit:        persistence.NewGormAuditRepository(db.DB),
		Metrics:      consoleMetrics,
		Installments: cfg.Financing.Installments,
		Idempotency: shared.IdempotencyConfig{
			TTL:     cfg.Guard.ChargedTTL,
			LockTTL: cfg.Guard.LockTTL,
		},
		Logger: log,
	})

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var authenticate gin.HandlerFunc
	if cfg.JWT.Enabled {
		jwtConfig := middleware.DefaultJWTConfig(auth.NewJWTService(cfg.JWT))
		jwtConfig.Logger = log
		authenticate = middleware.JWTAuthMiddlewareWithConfig(jwtConfig)
	} else {
		log.Warn("JWT disabled, operators are identified by the X-Operator header",
			zap.String("fallback_operator", cfg.JWT.DevOperator),
		)
		authenticate = middleware.OperatorFromHeader(cfg.JWT.DevOperator)
	}

	var actionLimiter *middleware.RateLimiter
	if cfg.HTTP.ActionRateLimit > 0 {
		actionLimiter = middleware.NewRateLimiter(cfg.HTTP.ActionRateLimit, cfg.HTTP.ActionRateBurst)
		log.Info("Action rate limiting enabled",
			zap.Float64("per_second", cfg.HTTP.ActionRateLimit),
			zap.Int("burst", cfg.HTTP.ActionRateBurst),
		)
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	securityConfig := middleware.DefaultSecurityConfig()
	securityConfig.HSTSEnabled = cfg.IsProduction()

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, map[string]handler.HealthCheck{
		"database": func(context.Context) error { return db.Ping() },
		"guard":    store.Ping,
		"storefront": func(ctx context.Context) error {
			_, err := storefrontClient.ListProducts(ctx, 1)
			return err
		},
	})

	engine, err := router.NewEngine(router.Handlers{
		Orders:    handler.NewOrderHandler(service),
		Customers: handler.NewCustomerHandler(service),
		System:    systemHandler,
	}, router.Options{
		Logger:         log,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CORS:           corsConfig,
		Security:       securityConfig,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		Metrics: middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       meterProvider.IsEnabled(),
		},
		Authenticate:  authenticate,
		ActionLimiter: actionLimiter,
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newMailer returns the SMTP mailer, or a mailer that only logs when mail is disabled
func newMailer(cfg *config.Config, log *zap.Logger) notification.Mailer {
	if !cfg.Mail.Enabled {
		log.Warn("Mail disabled, customer emails will only be logged")
		return notification.NewLogMailer(log)
	}
	mailer, err := notification.NewSMTPMailer(&notification.SMTPConfig{
		Host:           cfg.Mail.Host,
		Port:           cfg.Mail.Port,
		Username:       cfg.Mail.Username,
		Password:       cfg.Mail.Password,
		FromAddress:    cfg.Mail.FromAddress,
		FromName:       cfg.Mail.FromName,
		TimeoutSeconds: int(cfg.Mail.Timeout / time.Second),
	}, log)
	if err != nil {
		log.Fatal("Failed to create SMTP mailer", zap.Error(err))
	}
	return mailer
}

// migrateUp applies pending migrations on the server's connection. The
// migrator is not closed: closing it would close the shared *sql.DB.
func migrateUp(db *persistence.Database, driver string, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, driver, log)
	if err != nil {
		return err
	}
	return m.Up()
}
