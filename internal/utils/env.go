package utils

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/gitguide/gitguide-backend/internal/logger"
)

// LoadDotEnv loads a local .env file when present. Missing files are fine;
// production supplies real environment variables.
func LoadDotEnv(log *logger.Logger) {
	if err := godotenv.Load(); err != nil {
		if log != nil {
			log.Debug("No .env file loaded", "error", err)
		}
		return
	}
	if log != nil {
		log.Debug("Loaded environment from .env file")
	}
}

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	if log != nil {
		log.Debug("Environment variable found, using environment")
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
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as int, using default", "providedVal", valStr, "defaultVal", defaultVal, "error", err)
		}
		return defaultVal
	}
	return i
}
