package common

import (
	"github.com/kedaikopi/kopi/lib/logger"
)

// InitLoggers sets the level of all loggers from the server configuration.
// An empty level keeps the default (info).
func InitLoggers(config ServerConfig) error {
	return logger.SetLevel(config.LogLevel)
}
