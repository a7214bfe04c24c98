package utils

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// GetEnv returns the value of the environment variable, or "" if unset
func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// GetEnvOr returns the value of the environment variable, or def if unset
func GetEnvOr(key, def string) string {
	if v := GetEnv(key); v != "" {
		return v
	}
	return def
}

// GetIntEnv parses the environment variable as int, or returns def
func GetIntEnv(key string, def int) int {
	v := GetEnv(key)
	if v == "" {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// GetDurationEnv parses the environment variable as a duration, or returns def
func GetDurationEnv(key string, def time.Duration) time.Duration {
	v := GetEnv(key)
	if v == "" {
		return def
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return def
	}
	return d
}
