package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/nfse-dashboard/internal/api"
	"github.com/hypernova-labs/nfse-dashboard/internal/audit"
	"github.com/hypernova-labs/nfse-dashboard/internal/config"
	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/email"
	"github.com/hypernova-labs/nfse-dashboard/internal/services"
	"github.com/hypernova-labs/nfse-dashboard/internal/workflows"
	"github.com/sirupsen/logrus"
)

func main() {
	// Cargar configuración
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Configurar logging
	logger := setupLogger(cfg)
	logger.Info("Starting NFSe dashboard...")

	// Configurar modo de Gin
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cliente de datos
	var client database.Client
	var health func(ctx context.Context) error
	switch cfg.DataBackend {
	case config.DataBackendMemory:
		memory := database.NewMemoryClient()
		if err := database.SeedDemoData(context.Background(), memory); err != nil {
			logger.Fatalf("Error seeding demo data: %v", err)
		}
		logger.Warn("Using in-memory data backend with demo data")
		client = memory
		health = func(ctx context.Context) error { return nil }
	default:
		db, err := database.Connect(cfg)
		if err != nil {
			logger.Fatalf("Error connecting to database: %v", err)
		}
		defer db.Close()
		db.LogStats(logger)
		client = database.NewPostgresClient(db, logger)
		health = db.HealthCheck
	}

	// Caché de consultas en Redis
	if cfg.RedisEnabled() {
		redis, err := database.ConnectRedis(cfg)
		if err != nil {
			logger.Warnf("Error connecting to Redis, query cache disabled: %v", err)
		} else {
			defer redis.Close()
			redis.LogStats(logger)
			client = database.NewCachedClient(client, redis, cfg.Cache.TTL, logger)
			logger.WithField("ttl", cfg.Cache.TTL).Info("Query cache enabled")
		}
	}

	backend := &api.Backend{
		Client:  client,
		Audit:   audit.NewWriter(client, logger),
		Logger:  logger,
		Mailer:  setupMailer(cfg, logger),
		Probes:  services.DefaultProbes(cfg.Database.SSLMode),
		Reports: services.NewReportGenerator(logger),
	}

	// Inicializar cliente de Supabase
	if cfg.StorageEnabled() {
		supabaseClient, err := database.NewSupabaseClient(&cfg.Supabase, logger)
		if err != nil {
			logger.Warnf("Error initializing Supabase client: %v", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := supabaseClient.EnsureBucket(ctx); err != nil {
				logger.Warnf("Supabase storage not available: %v", err)
			} else {
				logger.Info("Supabase storage connection healthy")
				backend.Archiver = supabaseClient
			}
			cancel()
		}
	} else {
		logger.Warn("Supabase storage credentials not provided, exports will not be archived")
	}

	// Inicializar cliente de Inngest
	inngestClient, err := workflows.NewInngestClient(cfg, logger)
	if err != nil {
		logger.Warnf("Manual runs disabled: %v", err)
	} else {
		backend.Dispatcher = inngestClient
	}

	// Inicializar API
	apiHandler := api.NewAPI(backend, api.Options{
		SessionHashKey: []byte(cfg.Admin.SessionHashKey),
		SessionTTL:     cfg.Admin.SessionTTL,
		SecureCookie:   cfg.IsProduction(),
	})

	// Configurar router
	router := setupRouter(apiHandler, cfg, logger, health)

	// Crear servidor HTTP
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Canal para señales de terminación
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger configura el logger según la configuración
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// setupMailer elige Resend cuando hay API key, si no SMTP
func setupMailer(cfg *config.Config, logger *logrus.Logger) email.Mailer {
	if cfg.Email.ResendAPIKey != "" {
		logger.Info("Resend service initialized successfully")
		return email.NewResendService(cfg.Email.ResendAPIKey, cfg.Email.FromName, cfg.Email.FromAddress, logger)
	}

	mailer, err := email.NewSMTPMailer(cfg.Email.Host, cfg.Email.Port, cfg.Email.Username,
		cfg.Email.Password, cfg.Email.FromName, cfg.Email.FromAddress, logger)
	if err != nil {
		logger.Warnf("Email delivery not available: %v", err)
		return email.Disabled{}
	}
	logger.WithField("host", cfg.Email.Host).Info("SMTP mailer initialized")
	return mailer
}

// setupRouter configura el router principal
func setupRouter(apiHandler *api.API, cfg *config.Config, logger *logrus.Logger, health func(ctx context.Context) error) *gin.Engine {
	router := gin.New()

	router.Use(api.RequestLogger(logger))
	router.Use(gin.Recovery())

	// Middleware de CORS para desarrollo
	if cfg.IsDevelopment() {
		router.Use(func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", cfg.Server.BaseURL)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-API-Key")

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(204)
				return
			}

			c.Next()
		})
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if err := health(c.Request.Context()); err != nil {
			logger.WithError(err).Warn("Health check failed")
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "nfse-dashboard",
			"backend":   cfg.DataBackend,
			"version":   "1.0.0",
		})
	})

	v1 := router.Group("/v1")
	v1.Use(api.AdminAuth(cfg.Admin.APIKey, cfg.IsDevelopment(), logger))
	apiHandler.RegisterRoutes(v1)

	return router
}
