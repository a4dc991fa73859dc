package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	emacapp "github.com/rfa/backend/internal/application/emac"
	identityapp "github.com/rfa/backend/internal/application/identity"
	invoiceapp "github.com/rfa/backend/internal/application/invoice"
	partnerapp "github.com/rfa/backend/internal/application/partner"
	rebateapp "github.com/rfa/backend/internal/application/rebate"
	"github.com/rfa/backend/internal/infrastructure/auth"
	"github.com/rfa/backend/internal/infrastructure/cache"
	"github.com/rfa/backend/internal/infrastructure/config"
	"github.com/rfa/backend/internal/infrastructure/logger"
	"github.com/rfa/backend/internal/infrastructure/persistence"
	"github.com/rfa/backend/internal/infrastructure/storage"
	"github.com/rfa/backend/internal/infrastructure/telemetry"
	"github.com/rfa/backend/internal/interfaces/http/handler"
	"github.com/rfa/backend/internal/interfaces/http/middleware"
	"github.com/rfa/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//	@title			RFA Backend API
//	@version		1.0
//	@description	Pharmacy rebate management API - invoice verification, agreements and EMAC reconciliation

//	@contact.name	API Support
//	@contact.url	https://github.com/rfa/backend

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

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

	log.Info("Starting RFA Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry providers are no-ops when disabled in config
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
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
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
	}()

	// Database connection with zap-backed GORM logging
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

	db.DB.Logger = logger.NewGormLogger(log, gormLogLevel)

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Repositories
	laboratoryRepo := persistence.NewGormLaboratoryRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	invoiceAnomalyRepo := persistence.NewGormInvoiceAnomalyRepository(db.DB)
	templateRepo := persistence.NewGormTemplateRepository(db.DB)
	agreementRepo := persistence.NewGormAgreementRepository(db.DB)
	auditRepo := persistence.NewGormAuditRepository(db.DB)
	scheduleRepo := persistence.NewGormScheduleRepository(db.DB)
	emacRepo := persistence.NewGormEMACRepository(db.DB)
	emacAnomalyRepo := persistence.NewGormEMACAnomalyRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	txManager := persistence.NewGormTransactionManager(db.DB)

	// Upload deduplication store, Redis-backed when available
	idempotencyFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := idempotencyFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	blacklist := newTokenBlacklist(cfg.Redis, log)

	// Invoice document archive
	var documentStore invoiceapp.DocumentStore
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3DocumentStore(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize document storage", zap.Error(err))
		}
		documentStore = s3Store
		log.Info("Document archive enabled",
			zap.String("endpoint", cfg.Storage.Endpoint),
			zap.String("bucket", cfg.Storage.Bucket),
		)
	} else {
		documentStore = storage.NewInMemoryDocumentStore()
		log.Warn("Document archive disabled, uploaded files are kept in memory only")
	}

	// Application services
	jwtService := auth.NewJWTService(cfg.JWT)
	authService := identityapp.NewAuthService(userRepo, tenantRepo, jwtService, blacklist, log)
	tenantService := identityapp.NewTenantService(tenantRepo, userRepo, txManager, log)
	laboratoryService := partnerapp.NewLaboratoryService(laboratoryRepo, log)
	invoiceService := invoiceapp.NewInvoiceService(invoiceRepo, invoiceAnomalyRepo, laboratoryRepo, agreementRepo, txManager, log)
	csvImportService := invoiceapp.NewCSVImportService(invoiceService, laboratoryRepo, idempotencyStore, documentStore, log)
	templateService := rebateapp.NewTemplateService(templateRepo, log)
	agreementService := rebateapp.NewAgreementService(agreementRepo, templateRepo, laboratoryRepo, auditRepo, txManager, log)
	scheduleService := rebateapp.NewScheduleService(scheduleRepo, invoiceRepo, agreementRepo, txManager, log)
	emacService := emacapp.NewEMACService(emacRepo, emacAnomalyRepo, invoiceRepo, agreementRepo, laboratoryRepo, scheduleRepo, txManager, log)
	emacImportService := emacapp.NewCSVImportService(emacService, laboratoryRepo, log)

	// HTTP handlers
	authHandler := handler.NewAuthHandler(authService)
	tenantHandler := handler.NewTenantHandler(tenantService)
	laboratoryHandler := handler.NewLaboratoryHandler(laboratoryService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, csvImportService)
	templateHandler := handler.NewTemplateHandler(templateService)
	agreementHandler := handler.NewAgreementHandler(agreementService)
	scheduleHandler := handler.NewScheduleHandler(scheduleService)
	emacHandler := handler.NewEMACHandler(emacService, emacImportService)
	systemHandler := handler.NewSystemHandler()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
		engine.Use(middleware.HTTPMetricsWithMeter(meterProvider.Meter("rfa-backend/http"), true))
	}

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

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive", "time": time.Now().Format(time.RFC3339)})
	})
	engine.GET("/ready", readinessHandler(db, log))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: blacklist,
		SkipPaths: []string{
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Authentication
	authRoutes := router.NewDomainGroup("auth", "/auth")
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		authRoutes.Use(middleware.RateLimit(authLimiter))
	}
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.POST("/refresh", authHandler.RefreshToken)
	authRoutes.POST("/logout", authHandler.Logout)
	authRoutes.GET("/me", authHandler.GetCurrentUser)

	// Laboratories
	laboratoryRoutes := router.NewDomainGroup("laboratories", "/laboratories")
	laboratoryRoutes.POST("", laboratoryHandler.Create)
	laboratoryRoutes.GET("", laboratoryHandler.List)
	laboratoryRoutes.GET("/:id", laboratoryHandler.GetByID)
	laboratoryRoutes.PUT("/:id", laboratoryHandler.Update)
	laboratoryRoutes.DELETE("/:id", laboratoryHandler.Delete)

	// Laboratory invoices, verification and anomaly resolution
	invoiceRoutes := router.NewDomainGroup("invoices", "/invoices-labo")
	invoiceRoutes.POST("", invoiceHandler.Import)
	invoiceRoutes.GET("", invoiceHandler.List)
	invoiceRoutes.POST("/upload", middleware.BodyLimit(cfg.Upload.MaxFileSize), invoiceHandler.Upload)
	invoiceRoutes.POST("/anomalies/:id/resolve", invoiceHandler.ResolveAnomaly)
	invoiceRoutes.GET("/:id", invoiceHandler.GetByID)
	invoiceRoutes.POST("/:id/verify", invoiceHandler.Verify)
	invoiceRoutes.GET("/:id/verification", invoiceHandler.GetVerification)

	// Rebate templates, agreements, schedules and dashboard
	rebateRoutes := router.NewDomainGroup("rebate", "/rebate")

	templateRoutes := rebateRoutes.Group("templates", "/templates")
	templateRoutes.POST("", templateHandler.Create)
	templateRoutes.GET("", templateHandler.List)
	templateRoutes.GET("/:id", templateHandler.GetByID)
	templateRoutes.PATCH("/:id", templateHandler.Update)
	templateRoutes.DELETE("/:id", templateHandler.Delete)

	agreementRoutes := rebateRoutes.Group("agreements", "/agreements")
	agreementRoutes.POST("", agreementHandler.Create)
	agreementRoutes.GET("", agreementHandler.List)
	agreementRoutes.GET("/:id", agreementHandler.GetByID)
	agreementRoutes.PATCH("/:id", agreementHandler.Update)
	agreementRoutes.POST("/:id/activate", agreementHandler.Activate)
	agreementRoutes.GET("/:id/history", agreementHandler.History)
	agreementRoutes.GET("/:id/audit", agreementHandler.AuditTrail)

	rebateRoutes.POST("/preview", scheduleHandler.Preview)
	rebateRoutes.POST("/schedule/:id", scheduleHandler.Compute)
	rebateRoutes.GET("/schedules", scheduleHandler.List)
	rebateRoutes.GET("/schedules/:id", scheduleHandler.GetByInvoice)
	rebateRoutes.POST("/schedules/:id/reception", scheduleHandler.RecordReception)
	rebateRoutes.GET("/dashboard/monthly", scheduleHandler.MonthlyDashboard)

	// EMAC statements and reconciliation
	emacRoutes := router.NewDomainGroup("emac", "/emac")
	emacRoutes.POST("/manual", emacHandler.Create)
	emacRoutes.POST("/upload", middleware.BodyLimit(cfg.Upload.MaxFileSize), emacHandler.Upload)
	emacRoutes.GET("", emacHandler.List)
	emacRoutes.GET("/missing", emacHandler.Missing)
	emacRoutes.GET("/:id", emacHandler.GetByID)
	emacRoutes.POST("/:id/verify", emacHandler.Verify)
	emacRoutes.GET("/:id/triangle", emacHandler.Triangle)

	// System
	tenantRoutes := router.NewDomainGroup("tenants", "/tenants")
	tenantRoutes.POST("", tenantHandler.Create)
	tenantRoutes.GET("/:id", tenantHandler.GetByID)
	tenantRoutes.GET("/by-code/:code", tenantHandler.GetByCode)
	tenantRoutes.POST("/:id/suspend", tenantHandler.Suspend)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(authRoutes).
		Register(laboratoryRoutes).
		Register(invoiceRoutes).
		Register(rebateRoutes).
		Register(emacRoutes).
		Register(tenantRoutes).
		Register(systemRoutes)

	r.Setup()

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newTokenBlacklist prefers Redis so revocations survive restarts and are
// visible to every instance. Falls back to the in-memory blacklist.
func newTokenBlacklist(cfg config.RedisConfig, log *zap.Logger) auth.TokenBlacklist {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, falling back to in-memory token blacklist", zap.Error(err))
		_ = client.Close()
		return auth.NewInMemoryTokenBlacklist()
	}

	log.Info("Using Redis token blacklist")
	return auth.NewRedisTokenBlacklist(client)
}

// readinessHandler reports whether the service can take traffic.
func readinessHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Readiness check failed", zap.Error(err))
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
