package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/auth"
	"github.com/PratikDhanave/attendance-sync-service/internal/lock"
	"github.com/PratikDhanave/attendance-sync-service/internal/migration"
	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

// RegisterMigrationRoutes registers the migration trigger and status endpoints.
//
// POST /migrate-all       starts a full migration in the background (202)
// POST /retry-failed      runs retry mode and returns its summary
// GET  /migration-status  source/sink totals plus the state of the last run
//
// Both triggers answer 409 while another run holds the migration lock.
func RegisterMigrationRoutes(r gin.IRoutes, runner *migration.Runner, reporter *migration.Reporter, logger *zap.Logger) {
	r.POST("/migrate-all", func(c *gin.Context) {
		runID, err := runner.StartFullMigration(c.Request.Context())
		if errors.Is(err, lock.ErrLocked) {
			c.JSON(http.StatusConflict, gin.H{"error": "migration already in progress", "status": "processing"})
			return
		}
		if err != nil {
			logger.Error("Failed to start migration", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start migration"})
			return
		}

		logger.Info("Migration triggered", zap.String("run_id", runID), zap.String("operator", auth.Operator(c)))
		c.JSON(http.StatusAccepted, gin.H{
			"message": "Migration started in background",
			"status":  "processing",
			"run_id":  runID,
		})
	})

	r.POST("/retry-failed", func(c *gin.Context) {
		logger.Info("Retry triggered", zap.String("operator", auth.Operator(c)))

		summary, err := runner.Retry(c.Request.Context())
		if errors.Is(err, lock.ErrLocked) {
			c.JSON(http.StatusConflict, gin.H{"error": "migration already in progress", "status": "processing"})
			return
		}
		if err != nil {
			logger.Error("Retry failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"status": models.StatusError, "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	r.GET("/migration-status", func(c *gin.Context) {
		stats, err := reporter.Report(c.Request.Context())
		if err != nil {
			logger.Error("Failed to compute migration status", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, models.MigrationStatus{MigrationStats: *stats, Run: runner.State()})
	})
}
