package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/muni-incidencias/backend/internal/auth"
	"github.com/muni-incidencias/backend/internal/config"
	"github.com/muni-incidencias/backend/internal/http/handlers"
	"github.com/muni-incidencias/backend/internal/http/middleware"
	"github.com/muni-incidencias/backend/internal/obs"

	_ "github.com/muni-incidencias/backend/docs"
)

func Router(cfg config.Config, h *handlers.Handler, resolver auth.Resolver, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(obs.Instrument())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	r.Use(middleware.SessionGate(resolver, logger))

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", obs.Handler())

	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)

	r.GET("/dashboard", h.Dashboard)

	r.GET("/incidents", h.IncidentsList)
	r.POST("/incidents", h.IncidentCreate)
	r.GET("/incidents/new", h.IncidentNew)
	r.GET("/incidents/:code/confirm", h.IncidentDetail)
	r.POST("/incidents/:code/confirm", h.IncidentConfirm)
	r.POST("/incidents/:code/status", h.IncidentStatus)

	r.GET("/reports", h.Reports)

	r.GET("/settings", h.Settings)
	r.POST("/settings/users", h.UserCreate)
	r.POST("/settings/users/:id", h.UserUpdate)
	r.POST("/settings/users/:id/delete", h.UserDelete)

	api := r.Group("/api")
	{
		api.GET("/incidents/export/csv", h.ExportCSV)
		api.GET("/incidents/export/pdf", h.ExportPDF)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
