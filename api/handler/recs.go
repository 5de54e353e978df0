package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/upnext/api/middleware"
	"github.com/use-agent/upnext/models"
	"github.com/use-agent/upnext/recs"
)

// Resolver resolves a raw video id into recommendations.
type Resolver interface {
	Resolve(ctx context.Context, rawVideoID string) (*recs.Result, error)
}

// Recs returns a handler for GET /api/recs?v=<id>.
func Recs(svc Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Resolve(c.Request.Context(), c.Query("v"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.RecsResponse{
			Items:  res.Items,
			Cached: res.Cached,
		})
	}
}

// respondError maps err to a status and writes the error body. Items is
// always an empty list so clients can iterate unconditionally.
func respondError(c *gin.Context, err error) {
	var re *models.RecsError
	if !errors.As(err, &re) {
		re = models.NewRecsError(models.ErrCodeInternal, "unexpected failure", err)
	}

	status := mapErrorToStatus(re)
	if status >= http.StatusInternalServerError {
		slog.Error("recommendation request failed",
			"request_id", c.GetString(middleware.RequestIDKey),
			"code", re.Code,
			"error", re.Error(),
		)
	}

	c.JSON(status, models.RecsResponse{
		Items: []models.Item{},
		Error: re.Code,
	})
}

// mapErrorToStatus converts a RecsError code to an HTTP status.
func mapErrorToStatus(e *models.RecsError) int {
	if e.IsValidation() {
		return http.StatusBadRequest // 400
	}
	switch e.Code {
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	default:
		return http.StatusInternalServerError // 500
	}
}

// NotFound answers every unmatched route.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{Error: models.ErrCodeNotFound})
}
