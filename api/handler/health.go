package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/upnext/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// SessionStatser reports the state of the shared browsing session.
type SessionStatser interface {
	Stats() models.SessionStats
}

// Health returns a handler for GET /healthz. sessions may be nil when the
// configured engine never launches a browser.
//
// Degrades status when more than 80% of the page budget is in use.
func Health(engineName string, sessions SessionStatser, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := models.HealthResponse{
			Status:  "healthy",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Engine:  engineName,
			Version: Version,
		}

		if sessions != nil {
			stats := sessions.Stats()
			if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
				resp.Status = "degraded"
			}
			resp.SessionStats = &stats
		}

		c.JSON(http.StatusOK, resp)
	}
}
