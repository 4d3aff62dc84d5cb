package logger

import (
	"github.com/referralhub/backend/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger and installs it as the global zap logger.
// Production writes JSON to stdout; everything else uses the development encoder.
func New(cfg *config.Config) (*zap.Logger, error) {
	if !cfg.IsProduction() {
		log, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		zap.ReplaceGlobals(log)
		return log, nil
	}

	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.LevelKey = "severity"
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	zcfg.OutputPaths = []string{"stdout"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	log, err := zcfg.Build()
	if err != nil {
		return nil, err
	}

	log = log.With(zap.String("env", cfg.Environment))
	zap.ReplaceGlobals(log)
	return log, nil
}
