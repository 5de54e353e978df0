package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/upnext/api/handler"
	"github.com/use-agent/upnext/api/middleware"
	"github.com/use-agent/upnext/config"
)

// Deps are the collaborators the routes serve from.
type Deps struct {
	Resolver   handler.Resolver
	EngineName string

	// Sessions is nil when no browser session backs the engine.
	Sessions handler.SessionStatser

	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → CORS → Logger
//	Recs:    RateLimit
//
// CORS runs globally so unmatched routes and preflights carry the headers
// too. Any method other than GET on a known path falls through to 404.
func NewRouter(deps Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.HandleMethodNotAllowed = false
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())
	r.Use(gin.Logger())

	r.GET("/api/recs", middleware.RateLimit(cfg.RateLimit), handler.Recs(deps.Resolver))

	// Operational endpoints, never rate limited.
	r.GET("/healthz", handler.Health(deps.EngineName, deps.Sessions, deps.StartTime))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(handler.NotFound)

	return r
}
