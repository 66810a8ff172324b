// Package utils holds environment parsing helpers shared by config loading.
package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the trimmed value of name, or defaultVal when it is unset
// or blank.
func GetEnv(name, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return defaultVal
}

// GetEnvAsBool parses a boolean environment variable with a default.
func GetEnvAsBool(name string, defaultVal bool) bool {
	switch strings.ToLower(GetEnv(name, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}

// GetEnvAsInt retrieves an environment variable as an int with a default fallback.
func GetEnvAsInt(name string, defaultVal int) int {
	if val, err := strconv.Atoi(GetEnv(name, "")); err == nil {
		return val
	}
	return defaultVal
}

// GetEnvAsInt64 retrieves an environment variable as an int64 with a default fallback.
func GetEnvAsInt64(name string, defaultVal int64) int64 {
	if val, err := strconv.ParseInt(GetEnv(name, ""), 10, 64); err == nil {
		return val
	}
	return defaultVal
}

// GetEnvAsFloat retrieves an environment variable as a float64 with a default fallback.
func GetEnvAsFloat(name string, defaultVal float64) float64 {
	if val, err := strconv.ParseFloat(GetEnv(name, ""), 64); err == nil {
		return val
	}
	return defaultVal
}

// GetEnvAsMillis reads a whole number of milliseconds as a duration.
func GetEnvAsMillis(name string, defaultVal time.Duration) time.Duration {
	if val, err := strconv.ParseInt(GetEnv(name, ""), 10, 64); err == nil {
		return time.Duration(val) * time.Millisecond
	}
	return defaultVal
}
