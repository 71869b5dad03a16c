package app

import (
	"strings"

	"github.com/charlesng35/gatekeep/pkg/logger"
)

// ConfigureLogging initialises the global logger, defaulting to info level.
func ConfigureLogging(cfg ServerConfig) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}
	return logger.Init(logger.Options{Level: level, Format: cfg.LogFormat})
}
