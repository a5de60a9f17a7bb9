package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aromapulse/authgate/src/config"
)

// NewLogger builds the process logger. Pretty selects the human-readable
// development encoder; otherwise JSON is emitted.
func NewLogger(app config.AppConfig, lc config.LogConfig) (*zap.Logger, error) {
	var cfg zap.Config
	if lc.Pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	level := new(zapcore.Level)
	if err := level.Set(lc.Level); err != nil {
		*level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(*level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build(
		zap.Fields(
			zap.String("service", app.Name),
			zap.String("env", app.Env),
			zap.String("version", app.Version),
		),
	)
}
