package models

// RecsResponse is the response for GET /api/recs.
type RecsResponse struct {
	// Items is always present, empty on failure.
	Items []Item `json:"items"`

	// Cached is set when the items were served from the result cache.
	Cached bool `json:"cached,omitempty"`

	// Error is populated only on failure. Values are the ErrCode* constants.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the body for unmatched routes.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status       string        `json:"status"` // "healthy" or "degraded"
	Uptime       string        `json:"uptime"`
	Engine       string        `json:"engine"`
	SessionStats *SessionStats `json:"session_stats,omitempty"`
	Version      string        `json:"version"`
}

// SessionStats reports the state of the shared browsing session.
type SessionStats struct {
	Launched    bool  `json:"launched"`
	Launches    int64 `json:"launches"`
	ActivePages int   `json:"active_pages"`
	MaxPages    int   `json:"max_pages"`
}
