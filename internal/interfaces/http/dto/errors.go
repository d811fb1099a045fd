package dto

import "net/http"

// General error codes
const (
	ErrCodeInternal   = "INTERNAL"
	ErrCodeBadRequest = "BAD_REQUEST"
)

// errorCodeHTTPStatus maps domain error codes to HTTP status codes. The
// domain codes travel to the UI unchanged; only the status is derived
// here.
var errorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,

	"NOT_FOUND":      http.StatusNotFound,
	"ALREADY_EXISTS": http.StatusConflict,
	"INVALID_INPUT":  http.StatusBadRequest,
	"INVALID_STATE":  http.StatusUnprocessableEntity,
	"UNAUTHORIZED":   http.StatusUnauthorized,

	// offline-terminal conditions
	"POOL_EXHAUSTED":       http.StatusUnprocessableEntity,
	"NO_OPEN_SESSION":      http.StatusUnprocessableEntity,
	"AUTH_UNAVAILABLE":     http.StatusServiceUnavailable,
	"CONNECTIVITY_TIMEOUT": http.StatusServiceUnavailable,
	"TERMINAL_LOCKED":      http.StatusServiceUnavailable,
	"SYNC_CONFLICT":        http.StatusConflict,

	"SESSION_ALREADY_OPEN": http.StatusConflict,
	"ALLOCATION_CONFLICT":  http.StatusConflict,
	"DUPLICATE_PATIENT":    http.StatusConflict,
	"INVALID_PATIENT":      http.StatusBadRequest,
	"INVALID_INVOICE":      http.StatusBadRequest,
	"UNKNOWN_STUDY":        http.StatusUnprocessableEntity,
	"NOTHING_TO_RETURN":    http.StatusUnprocessableEntity,
	"NOT_PARKED":           http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for a domain error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
