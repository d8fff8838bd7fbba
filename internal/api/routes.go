package api

import (
	"time"

	"codeberg.org/mutker/aqimon/internal/logger"
	"codeberg.org/mutker/aqimon/internal/metrics"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the HTTP API. The poller is only ever read from here.
func NewRouter(svc Service, m *metrics.Metrics, log logger.Logger) *gin.Engine {
	log = log.WithComponent("api")

	r := gin.New()
	r.Use(gin.Recovery(), observe(m, log))
	RegisterRoutes(r, svc, m, log)

	return r
}

func RegisterRoutes(r *gin.Engine, svc Service, m *metrics.Metrics, log logger.Logger) {
	h := NewHandler(svc, log)

	api := r.Group("/api")
	{
		api.GET("/status", h.GetStatus)
		api.GET("/sensor_data", h.GetSensorData)
		api.GET("/latest", h.GetLatest)
	}
	r.GET("/healthz", h.GetHealth)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
}

func observe(m *metrics.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if m != nil {
			m.ObserveRequest(route, c.Writer.Status(), elapsed)
		}

		log.Debug().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", c.Writer.Status()).
			Dur("elapsed", elapsed).
			Msg("Request served")
	}
}
