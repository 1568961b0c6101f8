package api

import (
	"flagstore/internal/metrics"
	"flagstore/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RegisterRoutes wires the admin surface. rdb may be nil, in which case write
// routes run without the distributed rate limiter.
func RegisterRoutes(flagHandler *FlagHandler, rdb *redis.Client, requestsPerSecond int) *gin.Engine {
	r := gin.New()

	// Global Middleware
	r.Use(
		middleware.CorsMiddleware(),
		middleware.RequestID(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware(),
	)
	r.SetTrustedProxies(nil)

	// Public Routes
	r.GET("/health", flagHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	writes := []gin.HandlerFunc{}
	if rdb != nil {
		writes = append(writes, middleware.RateLimitMiddleware(rdb, requestsPerSecond))
	}

	v1 := r.Group("/v1")
	{
		v1.GET("/flags", flagHandler.ListFlags)
		v1.GET("/flag/:name", flagHandler.GetFlag)
		v1.PUT("/flag/:name", append(writes, flagHandler.SetFlag)...)
		v1.DELETE("/flag/:name", append(writes, flagHandler.DeleteFlag)...)
	}
	return r
}
