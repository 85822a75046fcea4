package logger

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromEnv creates the application logger and replaces zap globals.
func NewFromEnv() (*zap.Logger, error) {
	return New(levelFromEnv())
}

func registerHooks(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			_ = log.Sync()
			return nil
		},
	})
}

// Module wires the global zap logger for the application.
var Module = fx.Module("logger",
	fx.Provide(
		NewFromEnv,
	),
	fx.Invoke(registerHooks),
)
