// Package router provides NPHIES service routing.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/nphies-rag/internal/nphies/handler"
)

// Register registers the NPHIES service routes. metricsHandler may be nil.
func Register(router gin.IRouter, nphiesHandler *handler.NphiesHandler, metricsHandler http.Handler) {
	logger.Info("Registering NPHIES routes...")

	router.GET("/healthz", nphiesHandler.Healthz)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	// NPHIES API Routes
	v1 := router.Group("/v1")
	{
		nphies := v1.Group("/nphies")
		{
			// Query endpoint
			nphies.POST("/answer", nphiesHandler.Answer)

			// Stats endpoint
			nphies.GET("/stats", nphiesHandler.Stats)

			// Admin endpoint
			nphies.DELETE("/cache", nphiesHandler.ClearCache)

			// UI strings
			nphies.GET("/welcome", nphiesHandler.Welcome)
		}
	}

	logger.Info("HTTP routes registered")
}
