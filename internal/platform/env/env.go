// Package env centralizes environment-variable reads with log-and-default
// behavior, following the teacher repo's internal/utils.GetEnv convention.
package env

import (
	"os"
	"strconv"
	"time"

	"github.com/videopipeline/orchestrator/internal/platform/logger"
)

func GetString(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

func GetInt(key string, defaultVal int, log *logger.Logger) int {
	if log != nil {
		log = log.With("env_var", key)
	}
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if log != nil {
			log.Warn("environment variable not an int, using default", "value", raw, "default", defaultVal)
		}
		return defaultVal
	}
	return n
}

func GetBool(key string, defaultVal bool, log *logger.Logger) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		if log != nil {
			log.Warn("environment variable not a bool, using default", "value", raw, "default", defaultVal)
		}
		return defaultVal
	}
	return b
}

func GetDuration(key string, defaultVal time.Duration, log *logger.Logger) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		if log != nil {
			log.Warn("environment variable not a duration, using default", "value", raw, "default", defaultVal)
		}
		return defaultVal
	}
	return d
}
