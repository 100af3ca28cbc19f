package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/auth"
	"github.com/PratikDhanave/attendance-sync-service/internal/lock"
	"github.com/PratikDhanave/attendance-sync-service/internal/migration"
	"github.com/PratikDhanave/attendance-sync-service/internal/models"
	"github.com/PratikDhanave/attendance-sync-service/internal/purge"
)

// RegisterPurgeRoutes registers the two-step sink delete.
//
// POST /clear-and-restart           preview: token + number of rows that would go
// POST /clear-and-restart/confirm   {"token": "...", "restart": bool}
//
// Confirm is refused with 409 while a migration runs; the token stays valid.
// The preview accepts the same emp_id/start_date/end_date filters as
// /supabase-data; without filters the whole table is targeted.
func RegisterPurgeRoutes(r gin.IRoutes, svc *purge.Service, runner *migration.Runner, logger *zap.Logger) {
	r.POST("/clear-and-restart", func(c *gin.Context) {
		q, err := parseFilter(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		preview, err := svc.Preview(c.Request.Context(), q)
		if err != nil {
			logger.Error("Failed to preview purge", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to preview delete"})
			return
		}

		logger.Warn("Purge requested",
			zap.String("operator", auth.Operator(c)),
			zap.Int64("preview_count", preview.PreviewCount))
		c.JSON(http.StatusOK, preview)
	})

	r.POST("/clear-and-restart/confirm", func(c *gin.Context) {
		var req models.PurgeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if req.Token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}

		deleted, runID, err := runner.Purge(c.Request.Context(), svc, req.Token, req.Restart)
		switch {
		case errors.Is(err, lock.ErrLocked):
			c.JSON(http.StatusConflict, gin.H{"error": "migration already in progress", "status": "processing"})
			return
		case errors.Is(err, purge.ErrUnknownToken), errors.Is(err, purge.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			logger.Error("Failed to purge sink", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
			return
		}

		logger.Warn("Sink purged",
			zap.String("operator", auth.Operator(c)),
			zap.Int64("deleted", deleted),
			zap.Bool("restart", req.Restart))
		res := models.PurgeResult{
			Message: fmt.Sprintf("Cleared %d records", deleted),
			Deleted: deleted,
			RunID:   runID,
		}
		if runID != "" {
			res.Message += "; migration restarted"
		}
		c.JSON(http.StatusOK, res)
	})
}
