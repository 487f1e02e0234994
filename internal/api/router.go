package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
)

// SetupRouter exposes the agent's local status and control API.
func SetupRouter(handler *Handler, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log.With("http")))

	router.GET("/health", handler.Health)

	api := router.Group("/api")
	{
		// Jobs
		api.GET("/jobs", handler.GetJobs)
		api.POST("/jobs", handler.CreateJob)
		api.GET("/jobs/:id", handler.GetJob)
		api.GET("/jobs/:id/preview", handler.PreviewJob)
		api.POST("/jobs/:id/reprint", handler.ReprintJob)
		api.POST("/sweep", handler.Sweep)

		// Printer
		api.GET("/printer", handler.GetPrinter)
		api.POST("/printer/test", handler.TestPrint)

		api.GET("/alerts", handler.GetAlerts)
	}

	return router
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		detail := fmt.Sprintf("%d in %s", status, time.Since(start).Round(time.Millisecond))
		if status >= 500 {
			log.Warning(c.Request.Method+" "+c.Request.URL.Path, detail)
			return
		}
		log.Info(c.Request.Method+" "+c.Request.URL.Path, detail)
	}
}
