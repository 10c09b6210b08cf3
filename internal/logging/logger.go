// Package logging wraps zap into the sugared logger nlecore's command layer
// and CLI pass around, rather than reaching for log/slog.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// New builds a *zap.SugaredLogger for the given mode ("prod"/"production"
// for JSON output at info level, anything else for human-readable
// development output at debug level).
func New(mode string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
