package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterIndexRoutes registers GET /, a short description of the API.
func RegisterIndexRoutes(r gin.IRoutes) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Attendance migration service",
			"endpoints": gin.H{
				"/migrate-all":               "Migrate all records from the source to the sink",
				"/retry-failed":              "Insert source records still missing from the sink",
				"/migration-status":          "Compare source and sink totals",
				"/supabase-data":             "Query records in the sink",
				"/getAttendanceStats":        "Totals, today's records and distinct employees",
				"/clear-and-restart":         "Preview a delete of sink records",
				"/clear-and-restart/confirm": "Confirm a previewed delete",
			},
		})
	})
}
