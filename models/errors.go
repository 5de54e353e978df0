package models

import "fmt"

// Error codes used in API responses and internal error handling.
// They are the literal values of the "error" field in JSON bodies.
const (
	ErrCodeMissingVideoID = "missing_video_id"
	ErrCodeBadVideoID     = "bad_video_id"
	ErrCodeScrapeFailed   = "scrape_failed"
	ErrCodeInternal       = "internal_error"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeNotFound       = "not_found"
)

// RecsError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type RecsError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *RecsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RecsError) Unwrap() error {
	return e.Err
}

// NewRecsError creates a new RecsError.
func NewRecsError(code, message string, err error) *RecsError {
	return &RecsError{Code: code, Message: message, Err: err}
}

// IsValidation reports whether the error is a client-input fault.
func (e *RecsError) IsValidation() bool {
	return e.Code == ErrCodeMissingVideoID || e.Code == ErrCodeBadVideoID
}
