package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/FairForge/multidb/internal/deprecation"
)

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("MULTIDB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if logLevel := os.Getenv("MULTIDB_LOG_LEVEL"); logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if primary := os.Getenv("MULTIDB_PRIMARY"); primary != "" {
		cfg.Primary = primary
	}

	if replicas := os.Getenv("MULTIDB_REPLICA_DATABASES"); replicas != "" {
		cfg.ReplicaDatabases = splitList(replicas)
	}
	if slaves := os.Getenv("MULTIDB_SLAVE_DATABASES"); slaves != "" {
		deprecation.Warn("MULTIDB_SLAVE_DATABASES", "MULTIDB_SLAVE_DATABASES is deprecated, use MULTIDB_REPLICA_DATABASES")
		cfg.SlaveDatabases = splitList(slaves)
	}

	// Pinning settings
	if cookie := os.Getenv("MULTIDB_PINNING_COOKIE"); cookie != "" {
		cfg.Pinning.Cookie = cookie
	}
	if seconds := os.Getenv("MULTIDB_PINNING_SECONDS"); seconds != "" {
		if s, err := strconv.Atoi(seconds); err == nil {
			cfg.Pinning.Seconds = s
		}
	}
	if secure := os.Getenv("MULTIDB_PINNING_SECURE"); secure != "" {
		if b, err := strconv.ParseBool(secure); err == nil {
			cfg.Pinning.Secure = b
		}
	}
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
