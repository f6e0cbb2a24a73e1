package http

import (
	"time"

	"github.com/Morphiu/Squad-Yangu/internal/adapters/transport/http/middleware"
	"github.com/Morphiu/Squad-Yangu/internal/infra/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	rateLimitCacheSize = 10_000
	rateLimitIdleTTL   = time.Hour
)

func NewRouter(cfg *config.Config, h *Handler, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	if h.metrics != nil {
		router.Use(middleware.Metrics(h.metrics))
	}
	if cfg.RateLimitRPS > 0 {
		router.Use(middleware.NewHTTPRateLimitPerIP(cfg.RateLimitRPS, cfg.RateLimitBurst, rateLimitCacheSize, rateLimitIdleTTL))
	}

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders: []string{
				"Origin", "Content-Type", "Accept",
				"Authorization",
				"X-Requested-With",
				middleware.RequestIDHeader,
			},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
			AllowCredentials: cfg.AllowCredentials,
			MaxAge:           12 * time.Hour,
		}))
	}

	bearer := middleware.BearerAuth(h.svc)

	auth := router.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.GET("/profile", bearer, h.Profile)
	auth.POST("/forgot-password", h.ForgotPassword)
	auth.POST("/reset-password", h.ResetPassword)

	users := router.Group("/users", bearer)
	users.GET("/profile", h.Profile)
	users.PUT("/profile", h.UpdateProfile)

	router.GET("/health", h.Health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	return router
}
