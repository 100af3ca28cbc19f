package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/migration"
)

// RegisterStatsRoutes registers GET /getAttendanceStats. now decides which
// day counts as today.
func RegisterStatsRoutes(r gin.IRoutes, reporter *migration.Reporter, now func() time.Time, logger *zap.Logger) {
	if now == nil {
		now = time.Now
	}
	r.GET("/getAttendanceStats", func(c *gin.Context) {
		stats, err := reporter.AttendanceStats(c.Request.Context(), now())
		if err != nil {
			logger.Error("Failed to compute attendance stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats query failed"})
			return
		}
		c.JSON(http.StatusOK, stats)
	})
}
