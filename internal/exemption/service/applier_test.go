package service

import (
	"testing"

	"github.com/shopspring/decimal"
	exemptiondomain "github.com/smallbiznis/cuotas/internal/exemption/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestApply(t *testing.T) {
	final, applied := Apply(nil, dec("2700"), 2)
	assert.True(t, dec("2700").Equal(final))
	assert.Nil(t, applied)

	final, applied = Apply(&exemptiondomain.Exemption{ID: 9, Kind: exemptiondomain.KindPartial, Percent: dec("50")}, dec("2700"), 2)
	assert.True(t, dec("1350").Equal(final))
	require.NotNil(t, applied)
	assert.True(t, dec("-1350").Equal(applied.Delta))
	assert.True(t, dec("2700").Equal(applied.Pre))

	final, _ = Apply(&exemptiondomain.Exemption{Kind: exemptiondomain.KindTotal, Percent: dec("100")}, dec("999.99"), 2)
	assert.True(t, final.IsZero())

	final, _ = Apply(&exemptiondomain.Exemption{Kind: exemptiondomain.KindPartial, Percent: dec("33")}, dec("10.01"), 2)
	assert.Equal(t, "6.71", final.StringFixed(2))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, exemptiondomain.StatusPending.CanTransitionTo(exemptiondomain.StatusApproved))
	assert.True(t, exemptiondomain.StatusPending.CanTransitionTo(exemptiondomain.StatusRejected))
	assert.True(t, exemptiondomain.StatusApproved.CanTransitionTo(exemptiondomain.StatusRevoked))
	assert.False(t, exemptiondomain.StatusApproved.CanTransitionTo(exemptiondomain.StatusRejected))
	assert.False(t, exemptiondomain.StatusRejected.CanTransitionTo(exemptiondomain.StatusApproved))
	assert.False(t, exemptiondomain.StatusRevoked.CanTransitionTo(exemptiondomain.StatusApproved))
}
