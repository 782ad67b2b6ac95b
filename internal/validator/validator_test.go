package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	ierr "github.com/smallbiznis/cuotas/internal/errors"
	"github.com/stretchr/testify/assert"
)

type percentRequest struct {
	Name    string           `validate:"required"`
	Percent decimal.Decimal  `validate:"gte=0,lte=100"`
	Cap     *decimal.Decimal `validate:"omitempty,gte=0,lte=100"`
}

func TestValidateRequest(t *testing.T) {
	over := decimal.NewFromInt(150)

	tests := []struct {
		name    string
		req     percentRequest
		wantErr bool
	}{
		{name: "valid", req: percentRequest{Name: "a", Percent: decimal.NewFromInt(40)}},
		{name: "upper bound", req: percentRequest{Name: "a", Percent: decimal.NewFromInt(100)}},
		{name: "missing name", req: percentRequest{Percent: decimal.NewFromInt(10)}, wantErr: true},
		{name: "negative percent", req: percentRequest{Name: "a", Percent: decimal.NewFromInt(-1)}, wantErr: true},
		{name: "percent over 100", req: percentRequest{Name: "a", Percent: decimal.RequireFromString("100.01")}, wantErr: true},
		{name: "cap over 100", req: percentRequest{Name: "a", Percent: decimal.NewFromInt(1), Cap: &over}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, ierr.IsValidation(err))
		})
	}
}
