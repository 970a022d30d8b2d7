// internal/app/features/errors/errors.go
package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/huddle/internal/app/system/apperr"
	"go.uber.org/zap"
)

// Body is the JSON shape of every error response.
type Body struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	RemainingHours int    `json:"remaining_hours,omitempty"`
	Status         string `json:"status,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(k apperr.Kind) int {
	switch k {
	case apperr.Validation, apperr.InviteInvalid:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden, apperr.CooldownActive:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict, apperr.CapacityExceeded:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorLogger writes error responses and logs server-side failures.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// Write renders err. Domain errors keep their message; anything else is
// logged and reported as a generic internal error.
func (el *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	var e *apperr.Error
	if !stderrors.As(err, &e) || e.Kind == apperr.Internal {
		el.LogServerError(w, r, "request failed", err)
		return
	}
	JSON(w, StatusFor(e.Kind), Body{
		Error:          string(e.Kind),
		Message:        e.Message,
		RemainingHours: e.RemainingHours,
		Status:         e.Status,
		Reason:         e.Reason,
	})
}

// LogBadRequest logs at debug level and writes a 400 with userMsg.
func (el *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	el.log.Debug(msg, zap.Error(err), zap.String("path", r.URL.Path))
	JSON(w, http.StatusBadRequest, Body{Error: string(apperr.Validation), Message: userMsg})
}

// LogServerError logs err and writes a generic 500.
func (el *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	el.log.Error(msg,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	JSON(w, http.StatusInternalServerError, Body{
		Error:   string(apperr.Internal),
		Message: "internal error",
	})
}
