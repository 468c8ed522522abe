package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/scrapefleet/coordinator/internal/platform/logger"
)

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("env_default", "default", defaultVal)
		}
		return defaultVal
	}
	if log != nil {
		log.Debug("env_loaded", "value", val)
	}
	return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	if log != nil {
		log = log.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("env_default", "default", defaultVal)
		}
		return defaultVal
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		if log != nil {
			log.Debug("env_parse_failed", "provided", valStr, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	if log != nil {
		log.Debug("env_loaded", "value", i)
	}
	return i
}

// GetEnvAsSeconds reads an env var as a count of whole seconds and returns it
// as a time.Duration. Every timeout in the fleet's configuration (§6 of
// SPEC_FULL.md) is specified this way.
func GetEnvAsSeconds(key string, defaultVal time.Duration, log *logger.Logger) time.Duration {
	seconds := GetEnvAsInt(key, int(defaultVal/time.Second), log)
	return time.Duration(seconds) * time.Second
}
