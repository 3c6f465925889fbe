package logging

import (
	"fmt"

	"storefront-client/internal/config"

	"go.uber.org/zap"
)

// New builds the process logger from the LOG_LEVEL / LOG_FORMAT settings.
func New(cfg config.Log) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger, nil
}
