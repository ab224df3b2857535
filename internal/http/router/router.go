// Package router builds the Gin engine with the shared middleware chain and
// hands feature modules their route groups.
package router

import (
	"net/http"
	"time"

	apphttp "realty_portal_backend/internal/http"
	"realty_portal_backend/platform/config"
	"realty_portal_backend/platform/httpkit"
	"realty_portal_backend/platform/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Options struct {
	Config *config.Config
	Logger *logger.Logger
	Health gin.HandlerFunc
}

// New builds the engine and returns it with the route groups modules attach
// to.
func New(opts Options) (*gin.Engine, apphttp.RouterContext) {
	if opts.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(opts.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(opts.Config))

	if opts.Health != nil {
		engine.GET("/healthz", opts.Health)
	} else {
		engine.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	api := engine.Group("/api/v1")

	public := api.Group("")

	protected := api.Group("")
	protected.Use(httpkit.AuthRequired(opts.Config))

	admin := api.Group("/admin")
	admin.Use(httpkit.AuthRequired(opts.Config))
	admin.Use(httpkit.RequireRole(httpkit.RoleAdmin))

	return engine, apphttp.RouterContext{
		Public:    public,
		Protected: protected,
		Admin:     admin,
	}
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.GetCORSOrigins()
	}
	return cors.New(corsCfg)
}
