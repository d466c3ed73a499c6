package routes

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/Wikid82/argus/internal/api/handlers"
	"github.com/Wikid82/argus/internal/api/middleware"
	"github.com/Wikid82/argus/internal/cerberus"
	"github.com/Wikid82/argus/internal/config"
	"github.com/Wikid82/argus/internal/database"
	"github.com/Wikid82/argus/internal/services"
)

// Dependencies are the long-lived components built by the caller.
type Dependencies struct {
	Cerberus *cerberus.Cerberus
	Security *services.SecurityService
	// Gatherer backs /metrics when set.
	Gatherer prometheus.Gatherer
	// Mount registers application handlers behind the security gate.
	Mount func(api *gin.RouterGroup)
}

// Register wires up API routes and performs automatic migrations.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config, deps Dependencies) error {
	if deps.Cerberus == nil {
		return errors.New("routes: cerberus is required")
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	router.GET("/api/v1/health", handlers.NewHealthHandler(db))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.APIHeaders(cfg.Environment == "development"))
	api.Use(deps.Cerberus.Middleware())

	securityHandler := handlers.NewSecurityHandler(deps.Cerberus, deps.Security)
	admin := api.Group("/security")
	admin.Use(middleware.AdminAuth(cfg.Security.AdminJWTSecret)...)
	{
		admin.GET("/status", securityHandler.GetStatus)
		admin.GET("/events", securityHandler.ListEvents)
		admin.GET("/blocks", securityHandler.ListBlocks)
		admin.GET("/blocks/:ip", securityHandler.GetBlock)
		admin.POST("/blocks", securityHandler.CreateBlock)
		admin.DELETE("/blocks/:ip", securityHandler.DeleteBlock)
	}

	if deps.Mount != nil {
		deps.Mount(api)
	}
	return nil
}
