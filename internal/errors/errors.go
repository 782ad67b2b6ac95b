package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Error categories shared by every domain package. Domain sentinels are
// marked with one of these so callers can branch on the category.
var (
	ErrNotFound      = new(ErrCodeNotFound, "resource not found")
	ErrValidation    = new(ErrCodeValidation, "validation error")
	ErrStateGuard    = new(ErrCodeStateGuard, "operation not allowed in current state")
	ErrConfiguration = new(ErrCodeConfiguration, "invalid configuration")
	ErrDatabase      = new(ErrCodeDatabase, "database error")
	ErrRateLimited   = new(ErrCodeRateLimited, "too many requests")
	ErrSystem        = new(ErrCodeSystemError, "system error")

	statusCodeMap = map[error]int{
		ErrNotFound:      http.StatusNotFound,
		ErrValidation:    http.StatusBadRequest,
		ErrStateGuard:    http.StatusConflict,
		ErrConfiguration: http.StatusUnprocessableEntity,
		ErrDatabase:      http.StatusInternalServerError,
		ErrRateLimited:   http.StatusTooManyRequests,
		ErrSystem:        http.StatusInternalServerError,
	}
)

const (
	ErrCodeNotFound      = "not_found"
	ErrCodeValidation    = "validation_error"
	ErrCodeStateGuard    = "state_guard"
	ErrCodeConfiguration = "configuration_error"
	ErrCodeDatabase      = "database_error"
	ErrCodeRateLimited   = "rate_limited"
	ErrCodeSystemError   = "system_error"
)

// InternalError represents a categorised domain error.
type InternalError struct {
	Code    string
	Message string
	Op      string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsStateGuard(err error) bool {
	return errors.Is(err, ErrStateGuard)
}

func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// Code returns the machine readable category code of err.
func Code(err error) string {
	for _, ref := range []*InternalError{ErrNotFound, ErrValidation, ErrStateGuard, ErrConfiguration, ErrDatabase, ErrRateLimited} {
		if errors.Is(err, ref) {
			return ref.Code
		}
	}
	return ErrCodeSystemError
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}
