package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"smartbuy/config"
)

// NewRouter builds the gin engine with middleware and all API routes.
func NewRouter(handler *Handler, cfg *config.Config, logger *logrus.Logger) *gin.Engine {
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(logger), cors.New(corsConfig(cfg.Server.AllowOrigins)))
	SetupRoutes(router, handler)
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader, cacheHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.GET("/filters", handler.GetFilters)
		api.GET("/periods", handler.GetPeriods)
		api.GET("/analysis", handler.GetAnalysis)
		api.GET("/areas/patterns", handler.GetAreaPatterns)
		api.GET("/areas/geojson", handler.GetAreaGeoJSON)
		api.GET("/recommendations", handler.GetRecommendations)
		api.GET("/patterns", handler.GetPatterns)
		api.POST("/refresh", handler.Refresh)
	}
}
