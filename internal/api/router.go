// Package api exposes the HTTP control and push surface.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go-ticker/internal/metrics"
	"go-ticker/internal/service"
	"go-ticker/internal/util"
)

// NewRouter wires every HTTP route onto a fresh gin engine.
func NewRouter(svc *service.Service, logger *util.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	h := NewHandler(svc, logger)

	router.GET("/livez", h.Live)
	router.GET("/readyz", h.Ready)
	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/snapshot", h.GetSnapshot)
		v1.GET("/position", h.GetPosition)
		v1.PUT("/position", h.SetPosition)
		v1.GET("/stream", h.Stream)
	}
	return router
}

// requestLogger logs each request after it is served.
func requestLogger(logger *util.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}
