package logger

import (
	"context"

	"github.com/smallbiznis/cuotas/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig builds the process logger tagged with the service identity.
func NewFromConfig(cfg config.Config) (*zap.Logger, error) {
	return New(Options{
		Level:       cfg.Logger.Level,
		Format:      cfg.Logger.Format,
		Service:     cfg.AppName,
		Version:     cfg.AppVersion,
		Environment: cfg.Environment,
	})
}

var Module = fx.Module("logger",
	fx.Provide(NewFromConfig),
	fx.Invoke(func(lc fx.Lifecycle, log *zap.Logger) {
		lc.Append(fx.StopHook(func(context.Context) error {
			// stderr sync fails on some terminals; nothing useful to do then.
			_ = log.Sync()
			return nil
		}))
	}),
)
