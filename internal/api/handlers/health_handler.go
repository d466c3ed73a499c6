package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Wikid82/argus/internal/version"
)

// NewHealthHandler responds with basic service metadata for uptime checks.
// When db is set and cannot be reached the status is "degraded" with 503.
func NewHealthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := version.Current()
		status, code := "ok", http.StatusOK
		if db != nil && !dbReachable(db) {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     status,
			"service":    info.Name,
			"version":    info.Version,
			"git_commit": info.GitCommit,
			"build_time": info.BuildTime,
		})
	}
}

func dbReachable(db *gorm.DB) bool {
	sqlDB, err := db.DB()
	if err != nil {
		return false
	}
	return sqlDB.Ping() == nil
}
