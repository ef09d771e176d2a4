package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"startup-hub/metrics"
)

// RegisterHealthRoutes mounts /health and the prometheus /metrics endpoint.
func RegisterHealthRoutes(r *gin.Engine, db *gorm.DB, rec *metrics.Recorder) {
	r.GET("/health", func(c *gin.Context) { health(c, db) })
	r.GET("/metrics", gin.WrapH(rec.Handler()))
}

func health(c *gin.Context, db *gorm.DB) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
