package conf

import "github.com/boxrec/boxrec/internal/logger"

// GetLogger returns the conf module logger. It is fetched on every call so
// it follows the central logger installed after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("conf")
}
