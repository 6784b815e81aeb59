package handler

import (
	"strings"

	"moviequery/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter wires the HTTP routes
func NewRouter(cfg config.ServerConfig, queryHandler *QueryHandler, healthHandler *HealthHandler, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	router.Use(Metrics())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(cfg.AllowedOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthHandler.Health)
	router.GET("/version", healthHandler.Version)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := NewRateLimiter(cfg.RequestsPerMinute, cfg.RateLimitBurst)

	// API routes
	apiV1 := router.Group("/api/v1", limiter.Middleware())
	{
		apiV1.POST("/query", queryHandler.Query)
		apiV1.POST("/query/stream", queryHandler.QueryStream)
	}

	return router
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
