package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opendots/opendots-backend/config"
	"github.com/opendots/opendots-backend/handlers"
	"github.com/opendots/opendots-backend/metrics"
	"github.com/opendots/opendots-backend/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Dependencies holds everything needed to mount the routes.
type Dependencies struct {
	Config          *config.Config
	Session         middleware.SessionOptions
	AuthHandler     *handlers.AuthHandler
	ProfileHandler  *handlers.ProfileHandler
	UploadHandler   *handlers.UploadHandler
	D1StatusHandler *handlers.D1StatusHandler
	HealthHandler   *handlers.HealthHandler
	// RedisClient backs the auth rate limiter; nil disables it.
	RedisClient redis.Cmdable
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

// SetupRouter configures the gin engine with all routes.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if err := r.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(middleware.RequestIDMiddleware())
	if deps.HTTPMetrics != nil {
		r.Use(middleware.MetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.SecurityHeadersMiddleware(deps.Config))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))
	r.Use(middleware.SessionMiddleware(deps.Session))

	// Health, metrics and docs are skipped by the session middleware.
	r.GET("/health", deps.HealthHandler.DetailedHealth)
	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if deps.UploadHandler != nil {
		r.GET("/images/:userId/:imageName", deps.UploadHandler.ServeImageHandler)
	}

	auth := r.Group("/auth")
	if deps.RedisClient != nil {
		window := time.Duration(deps.Config.RateLimit.WindowSeconds) * time.Second
		auth.Use(middleware.AuthRateLimiter(deps.RedisClient, deps.Config.RateLimit.AuthRequestsPerMinute, window))
	}
	{
		auth.GET("/sign-in", deps.AuthHandler.SignInHandler)
		auth.GET("/callback", deps.AuthHandler.CallbackHandler)
		auth.POST("/sign-out", deps.AuthHandler.SignOutHandler)
		auth.POST("/refresh", deps.AuthHandler.RefreshTokenHandler)
	}

	api := r.Group("/api")
	{
		api.GET("/d1-status", deps.D1StatusHandler.GetStatus)

		authed := api.Group("", middleware.RequireUser())
		authed.GET("/profile/username-available", deps.ProfileHandler.UsernameAvailableHandler)
		authed.GET("/profile", deps.ProfileHandler.GetProfileHandler)
		authed.GET("/profile/onboarding", deps.ProfileHandler.OnboardingStatusHandler)
		authed.POST("/profile", deps.ProfileHandler.CreateProfileHandler)
		authed.PUT("/profile", deps.ProfileHandler.UpdateProfileHandler)
		if deps.UploadHandler != nil {
			authed.POST("/upload", deps.UploadHandler.UploadImageHandler)
		}
	}

	return r
}
