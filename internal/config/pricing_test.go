package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPricingConfig(t *testing.T) {
	cfg := DefaultPricingConfig()
	require.NoError(t, validatePricingConfig(cfg))
	assert.Equal(t, "0.01", cfg.Threshold().String())
	assert.Equal(t, "100", cfg.DefaultCap().String())
}

func TestValidatePricingConfig(t *testing.T) {
	cfg := DefaultPricingConfig()
	cfg.DefaultGlobalCapPercent = 120
	assert.Error(t, validatePricingConfig(cfg))

	cfg = DefaultPricingConfig()
	cfg.SignificantDelta = -1
	assert.Error(t, validatePricingConfig(cfg))
}

func TestPricingConfigHolder_NilFallsBackToDefaults(t *testing.T) {
	var holder *PricingConfigHolder
	assert.Equal(t, DefaultPricingConfig(), holder.Get())

	custom := DefaultPricingConfig()
	custom.SignificantDelta = 0.5
	assert.Equal(t, 0.5, NewStaticPricingConfig(custom).Get().SignificantDelta)
}
