package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/victoralfred/varbacktest/internal/core/domain"
	"github.com/victoralfred/varbacktest/internal/core/services/backtest"
	"github.com/victoralfred/varbacktest/internal/report"
)

// Response is the envelope every API endpoint returns
type Response struct {
	Success  bool             `json:"success"`
	Data     interface{}      `json:"data,omitempty"`
	Verdicts []report.Verdict `json:"verdicts,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
	Error    *ErrorResponse   `json:"error,omitempty"`
}

// ErrorResponse describes a failed request
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}, warnings ...string) {
	c.JSON(status, Response{Success: true, Data: data, Warnings: warnings})
}

// respondDecided is respond with the reject / fail-to-reject verdicts
func respondDecided(c *gin.Context, status int, data interface{}, verdicts []report.Verdict, warnings ...string) {
	c.JSON(status, Response{Success: true, Data: data, Verdicts: verdicts, Warnings: warnings})
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, Response{
		Success: false,
		Error: &ErrorResponse{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, backtest.ErrPersistenceDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}

	be, ok := domain.AsBacktestError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch be.Code {
	case domain.CodeInsufficientData, domain.CodeInvalidParameter, domain.CodeNumericalInstability:
		return http.StatusUnprocessableEntity
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeStorageFailure, domain.CodeCacheUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody converts err into the wire error. Dependency causes are not
// exposed to clients.
func errorBody(err error) *ErrorResponse {
	if errors.Is(err, backtest.ErrPersistenceDisabled) {
		return &ErrorResponse{Code: "PERSISTENCE_DISABLED", Message: err.Error()}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ErrorResponse{Code: "REQUEST_CANCELED", Message: "Request was canceled"}
	}
	if be, ok := domain.AsBacktestError(err); ok {
		return &ErrorResponse{Code: string(be.Code), Message: be.Message, Details: be.Details}
	}
	return &ErrorResponse{Code: "INTERNAL_ERROR", Message: "Internal server error"}
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(StatusFor(err), Response{Success: false, Error: errorBody(err)})
}
