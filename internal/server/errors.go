package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/smallbiznis/cuotas/internal/errors"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Hints   []string          `json:"hints,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound         = ierr.NewError("route_not_found").Mark(ierr.ErrNotFound)
	ErrInvalidRequest   = ierr.NewError("invalid_request").WithHint("request body or query is malformed").Mark(ierr.ErrValidation)
	ErrTooManyBatchRuns = ierr.NewError("too_many_batch_runs").WithHint("wait before starting another batch run").Mark(ierr.ErrRateLimited)
	ErrPeriodBusy       = ierr.NewError("period_busy").WithHint("another batch run holds this period").Mark(ierr.ErrStateGuard)
)

// fieldError carries the offending request field for 400 responses.
type fieldError struct {
	ValidationError
}

func (e *fieldError) Error() string { return e.Code }

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

func newValidationError(field, code, message string) error {
	return ierr.WithError(&fieldError{ValidationError{Field: field, Code: code, Message: message}}).
		Mark(ierr.ErrValidation)
}

func mapError(err error) (int, errorPayload) {
	status := ierr.HTTPStatusFromErr(err)
	payload := errorPayload{
		Type:  ierr.Code(err),
		Hints: ierr.Hints(err),
	}

	var fErr *fieldError
	if ierr.As(err, &fErr) {
		payload.Code = fErr.Code
		payload.Message = "validation error"
		payload.Errors = []ValidationError{fErr.ValidationError}
		return status, payload
	}

	if status >= http.StatusInternalServerError {
		payload.Message = "internal server error"
		payload.Hints = nil
		return status, payload
	}

	payload.Message = err.Error()
	return status, payload
}

// classifyErrorForLog returns the error category and message code for the
// request log without exposing request data.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, "internal_error"
	}
	if payload.Code != "" {
		return payload.Type, payload.Code
	}
	return payload.Type, payload.Message
}
