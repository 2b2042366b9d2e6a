package api

import (
	"botadmin/internal/metrics"
	"botadmin/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type RouterConfig struct {
	AllowedOrigins []string
	LoginPerSecond int
}

func RegisterRoutes(authHandler *AuthHandler, healthHandler *HealthHandler, verifier middleware.AccessVerifier, rdb redis.Scripter, cfg RouterConfig) *gin.Engine {
	r := gin.New()

	r.Use(
		middleware.CorsMiddleware(cfg.AllowedOrigins),
		middleware.RequestID(),
		middleware.TraceMiddleware(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware(),
	)
	r.SetTrustedProxies(nil)

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	loginLimiter := middleware.RateLimitMiddleware(rdb, middleware.RateLimiterConfig{
		Limit:     cfg.LoginPerSecond,
		KeyPrefix: "botadmin:ratelimit:login:",
	})

	token := r.Group("/api/token")
	{
		token.POST("/", loginLimiter, authHandler.Login)
		token.POST("/refresh/", authHandler.Refresh)
		token.POST("/blacklist/", authHandler.Blacklist)
	}

	protected := r.Group("/api/auth")
	protected.Use(middleware.JWTMiddleware(verifier))
	{
		protected.GET("/me/", authHandler.GetProfile)
	}
	return r
}
