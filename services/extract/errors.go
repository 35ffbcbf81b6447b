package extract

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an extraction failure so callers can tell permanently
// unresolvable videos from transiently retryable ones.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindRestricted    Kind = "restricted"
	KindTimeout       Kind = "timeout"
	KindInvalidFormat Kind = "invalid_format"
	KindFailed        Kind = "extraction_failed"
)

// Error is an extraction failure with a classification and the diagnostic
// text from the external tool.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract: %s: %s", e.Kind, e.Message)
}

// KindOf returns the classification of err, or KindFailed when err is not an
// extraction error.
func KindOf(err error) Kind {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindFailed
}

// IsTerminal reports whether the failure is permanent for this video rather
// than worth retrying soon.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindRestricted:
		return true
	}
	return false
}

// StatusCode maps an extraction failure to an HTTP status.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindNotFound, KindRestricted:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
