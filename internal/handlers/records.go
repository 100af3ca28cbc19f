package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// parseFilter reads emp_id, start_date and end_date. Dates are compared
// with time_stamp as plain strings, both bounds inclusive.
func parseFilter(c *gin.Context) (store.Query, error) {
	var q store.Query

	if v := c.Query("emp_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return q, errors.New("emp_id must be an integer")
		}
		q.EmpID = &id
	}
	q.From = c.Query("start_date")
	q.To = c.Query("end_date")

	if q.From != "" && q.To != "" && q.From > q.To {
		return q, errors.New("start_date must not be after end_date")
	}
	return q, nil
}

func parsePage(c *gin.Context) (limit, offset int, err error) {
	limit, offset = defaultLimit, 0

	if v := c.Query("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxLimit {
			return 0, 0, errors.New("limit must be between 1 and 1000")
		}
	}
	if v := c.Query("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

// RegisterRecordRoutes registers the sink inspection endpoint.
//
// GET /supabase-data?emp_id=&start_date=&end_date=&limit=100&offset=0
// - newest first
// - total is the number of rows in this page
func RegisterRecordRoutes(r gin.IRoutes, sink store.Sink, logger *zap.Logger) {
	r.GET("/supabase-data", func(c *gin.Context) {
		q, err := parseFilter(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		limit, offset, err := parsePage(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		q.Desc = true
		q.Limit = limit
		q.Offset = offset

		rows, err := sink.Select(c.Request.Context(), q)
		if err != nil {
			logger.Error("Failed to query sink", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sink query failed"})
			return
		}
		if rows == nil {
			rows = []models.AttendanceRecord{}
		}

		c.JSON(http.StatusOK, models.RecordsResponse{
			Total:  len(rows),
			Offset: offset,
			Limit:  limit,
			Data:   rows,
		})
	})
}
