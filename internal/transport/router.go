package transport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/rsandoval/gridwatch/internal/domain/audit"
	"github.com/rsandoval/gridwatch/internal/domain/device"
	"github.com/rsandoval/gridwatch/internal/domain/incident"
	"github.com/rsandoval/gridwatch/internal/export"
)

// Services groups the domain services exposed over HTTP.
type Services struct {
	Audit     *audit.Service
	Devices   *device.Service
	Incidents *incident.Service
	Exporter  *export.Exporter
}

// Config wires the router.
type Config struct {
	Services Services
	Resolver OperatorResolver
	AuthOn   bool
	Logger   *slog.Logger
}

// NewRouter builds the gin engine serving the UI event handlers.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(200, "ok")
	})

	h := &handler{services: cfg.Services, logger: cfg.Logger}

	api := r.Group("/api")
	if cfg.AuthOn && cfg.Resolver != nil {
		api.Use(Auth(cfg.Resolver))
	}

	checklists := api.Group("/checklists")
	{
		checklists.GET("", h.listChecklists)
		checklists.POST("/open", h.openChecklist)
		checklists.POST("/discard", h.discardChecklist)
		checklists.POST("/flush", h.flushChecklist)
		checklists.POST("/complete", h.completeChecklist)
		checklists.GET("/effective", h.effectiveScope)
		checklists.GET("/export", h.exportChecklist)
		checklists.PUT("/devices/:deviceID/operational", h.setOperational)
		checklists.PUT("/devices/:deviceID/quality", h.setQuality)
	}

	devices := api.Group("/devices")
	{
		devices.GET("", h.listDevices)
		devices.POST("", h.registerDevice)
		devices.POST("/:deviceID/toggle", h.toggleDevice)
	}

	incidents := api.Group("/incidents")
	{
		incidents.GET("", h.listIncidents)
		incidents.POST("", h.reportIncident)
		incidents.POST("/:id/resolve", h.resolveIncident)
		incidents.DELETE("/:id", h.deleteIncident)
	}

	return r
}
