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
	"github.com/opendots/opendots-backend/config"
	"github.com/opendots/opendots-backend/db"
	_ "github.com/opendots/opendots-backend/docs"
	"github.com/opendots/opendots-backend/handlers"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/metrics"
	"github.com/opendots/opendots-backend/middleware"
	"github.com/opendots/opendots-backend/router"
	"github.com/opendots/opendots-backend/services"
	"github.com/opendots/opendots-backend/store"
	"github.com/opendots/opendots-backend/store/d1"
	"github.com/opendots/opendots-backend/store/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// @title OpenDots API
// @version 1.0
// @description Profile onboarding, OAuth sessions and image uploads backed by Supabase and Cloudflare.
// @BasePath /
func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer logger.Close()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Primary store
	if cfg.Database.RunMigrations {
		if err := db.RunMigrations(cfg.Database.URL()); err != nil {
			log.Fatalf("Failed to run database migrations: %v", err)
		}
	}
	pool, err := config.ConnectPostgres(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Redis only backs the auth rate limiter; run without it if it is down.
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		client := redis.NewClient(config.RedisOptions(&cfg.Redis))
		if err := config.PingRedis(ctx, client, 3, time.Second); err != nil {
			log.Warnw("Redis unavailable, auth rate limiting disabled", "error", err)
			client.Close()
		} else {
			redisClient = client
			defer redisClient.Close()
		}
	}

	// Secondary store
	var d1Store *d1.ProfileStore
	if cfg.Cloudflare.D1Enabled {
		exec, closeD1, err := d1.Open(&cfg.Cloudflare)
		if err != nil {
			log.Warnw("D1 disabled, failed to open", "error", err)
		} else {
			defer closeD1()
			migrations, err := d1.Migrations()
			if err == nil {
				_, err = d1.Migrate(ctx, exec, migrations)
			}
			if err != nil {
				log.Warnw("D1 migrations failed", "error", err)
			}
			d1Store = d1.NewProfileStore(exec)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	profileMetrics := metrics.NewProfileMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	// Services
	profileOpts := []services.ProfileServiceOption{services.WithProfileMetrics(profileMetrics)}
	var statusReporter store.StatusReporter
	var d1Pinger services.StorePinger
	if d1Store != nil {
		profileOpts = append(profileOpts, services.WithSecondaryStore(d1Store))
		statusReporter = d1Store
		d1Pinger = d1Store
	}
	profileService := services.NewProfileService(postgres.NewProfileStore(pool), profileOpts...)

	supabaseClient, err := services.NewSupabaseClient(cfg.Supabase.URL, cfg.Supabase.AnonKey)
	if err != nil {
		log.Fatalf("Failed to create Supabase client: %v", err)
	}
	authService := services.NewAuthService(supabaseClient, cfg.Supabase.URL, postgres.NewLegacyProfileStore(pool))

	var uploadHandler *handlers.UploadHandler
	if cfg.Cloudflare.R2Enabled() {
		images, err := services.NewImageStorage(ctx,
			cfg.Cloudflare.AccountID,
			cfg.Cloudflare.R2Bucket,
			cfg.Cloudflare.R2AccessKeyID,
			cfg.Cloudflare.R2SecretAccessKey,
			cfg.Server.PublicAppURL)
		if err != nil {
			log.Warnw("R2 disabled, failed to configure", "error", err)
		} else {
			uploadHandler = handlers.NewUploadHandler(images)
		}
	} else {
		log.Info("R2 credentials not set, image uploads disabled")
	}

	var redisPinger services.RedisPinger
	var rateLimitStore redis.Cmdable
	if redisClient != nil {
		redisPinger = redisClient
		rateLimitStore = redisClient
	}
	healthService := services.NewHealthService(pool, redisPinger, d1Pinger, cfg.Server.Version)
	healthService.SetPoolStats(func() (int32, int32) {
		stat := pool.Stat()
		return stat.AcquiredConns(), stat.MaxConns()
	})

	validator, err := middleware.NewJWTValidator(&cfg.Supabase)
	if err != nil {
		log.Fatalf("Failed to create JWT validator: %v", err)
	}

	handlers.RegisterValidators()
	r := router.SetupRouter(router.Dependencies{
		Config: cfg,
		Session: middleware.SessionOptions{
			Policy:        middleware.DefaultSessionPolicy(),
			Validator:     validator,
			Refresher:     authService,
			Onboarding:    profileService,
			SecureCookies: cfg.IsProduction(),
			D1Available:   d1Store != nil,
		},
		AuthHandler:     handlers.NewAuthHandler(authService, profileService, &cfg.Server),
		ProfileHandler:  handlers.NewProfileHandler(profileService),
		UploadHandler:   uploadHandler,
		D1StatusHandler: handlers.NewD1StatusHandler(services.NewD1StatusService(statusReporter)),
		HealthHandler:   handlers.NewHealthHandler(healthService),
		RedisClient:     rateLimitStore,
		HTTPMetrics:     httpMetrics,
		Gatherer:        registry,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Server.Environment,
			"d1_enabled", d1Store != nil,
			"r2_enabled", uploadHandler != nil,
			"rate_limit_enabled", redisClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}
	profileService.WaitForBackfills()
	log.Info("Server exited")
}
