package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// PricingConfig tunes the dues pricing pipeline. Rule definitions and the
// global discount config live in the database; these are process wide knobs.
type PricingConfig struct {
	// SignificantDelta is the absolute difference above which a recalculated
	// total replaces the stored one.
	SignificantDelta float64 `mapstructure:"significantDelta"`
	// DefaultGlobalCapPercent applies when no global discount config row exists.
	DefaultGlobalCapPercent float64 `mapstructure:"defaultGlobalCapPercent"`
	RoundingPlaces          int32   `mapstructure:"roundingPlaces"`
	DefaultActor            string  `mapstructure:"defaultActor"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		SignificantDelta:        0.01,
		DefaultGlobalCapPercent: 100,
		RoundingPlaces:          2,
		DefaultActor:            "system",
	}
}

func (c PricingConfig) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(c.SignificantDelta)
}

func (c PricingConfig) DefaultCap() decimal.Decimal {
	return decimal.NewFromFloat(c.DefaultGlobalCapPercent)
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewPricingConfigHolder loads pricing.yml and keeps it reloaded on change.
func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/cuotas")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CUOTAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.significantDelta", defaults.SignificantDelta)
	v.SetDefault("pricing.defaultGlobalCapPercent", defaults.DefaultGlobalCapPercent)
	v.SetDefault("pricing.roundingPlaces", defaults.RoundingPlaces)
	v.SetDefault("pricing.defaultActor", defaults.DefaultActor)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPricingConfig(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated PricingConfig
			if err := v.UnmarshalKey("pricing", &updated); err != nil {
				log.Printf("[pricing-config] reload failed: %v", err)
				return
			}
			if err := validatePricingConfig(updated); err != nil {
				log.Printf("[pricing-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[pricing-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// NewStaticPricingConfig wraps a fixed config, mainly for tests.
func NewStaticPricingConfig(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PricingConfigHolder) Get() PricingConfig {
	if h == nil {
		return DefaultPricingConfig()
	}
	return h.current.Load().(PricingConfig)
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.SignificantDelta < 0 {
		return errors.New("pricing.significantDelta cannot be negative")
	}
	if cfg.DefaultGlobalCapPercent < 0 || cfg.DefaultGlobalCapPercent > 100 {
		return errors.New("pricing.defaultGlobalCapPercent must be within [0,100]")
	}
	if cfg.RoundingPlaces < 0 || cfg.RoundingPlaces > 6 {
		return errors.New("pricing.roundingPlaces must be within [0,6]")
	}
	return nil
}
