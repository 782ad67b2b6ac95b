package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errPaid = NewError("cuota_paid").WithHint("paid cuotas are read only").Mark(ErrStateGuard)

func TestCategoriesSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("recalculate: %w", errPaid)

	assert.True(t, IsStateGuard(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, Is(wrapped, errPaid))
	assert.Equal(t, ErrCodeStateGuard, Code(wrapped))
	assert.Equal(t, http.StatusConflict, HTTPStatusFromErr(wrapped))
	assert.Equal(t, []string{"paid cuotas are read only"}, Hints(wrapped))
}

func TestHTTPStatusFromErr(t *testing.T) {
	tests := []struct {
		err  error
		want int
		code string
	}{
		{NewError("x").Mark(ErrValidation), http.StatusBadRequest, ErrCodeValidation},
		{NewError("x").Mark(ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{NewError("x").Mark(ErrConfiguration), http.StatusUnprocessableEntity, ErrCodeConfiguration},
		{NewError("x").Mark(ErrRateLimited), http.StatusTooManyRequests, ErrCodeRateLimited},
		{NewError("x").Mark(ErrDatabase), http.StatusInternalServerError, ErrCodeDatabase},
		{fmt.Errorf("plain"), http.StatusInternalServerError, ErrCodeSystemError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, HTTPStatusFromErr(tc.err))
		assert.Equal(t, tc.code, Code(tc.err))
	}
}

func TestWithErrorKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := WithError(cause).WithMessage("append audit entry").Mark(ErrDatabase)

	assert.True(t, IsDatabase(err))
	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "append audit entry")
}
