package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/FairForge/multidb/internal/database"
	"github.com/FairForge/multidb/internal/deprecation"
	"github.com/FairForge/multidb/internal/filters"
)

const sample = `
server:
  port: 9000
  shutdown_timeout: 5s
log:
  level: debug
primary: default
databases:
  default:
    host: db-primary
    database: notes
  replica-1:
    host: db-replica-1
    database: notes
  replica-2:
    host: db-replica-2
    database: notes
replica_databases: [replica-1, replica-2]
pinning:
  seconds: 30
  operations: [accounts.login]
  secure: true
  same_site: strict
`

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "default", cfg.Primary)
	assert.Equal(t, "multidb_pin_writes", cfg.Pinning.Cookie)
	assert.Equal(t, 15, cfg.Pinning.Seconds)
	assert.Equal(t, 15*time.Second, cfg.PinWindow())
	assert.True(t, cfg.Pinning.HTTPOnly)
	assert.NoError(t, cfg.Validate(), "defaults must validate without replicas")
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "db-replica-2", cfg.Databases["replica-2"].Host)
	assert.Equal(t, []string{"replica-1", "replica-2"}, cfg.Replicas())
	assert.Equal(t, 30*time.Second, cfg.PinWindow())
	assert.Equal(t, http.SameSiteStrictMode, cfg.Pinning.SameSiteMode())

	// Keys left out keep their defaults.
	assert.Equal(t, "multidb_pin_writes", cfg.Pinning.Cookie)
	assert.True(t, cfg.Pinning.HTTPOnly)

	assert.NoError(t, cfg.Validate())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("server: [port"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multidb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReplicas_DeprecatedKey(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	deprecation.Reset()
	deprecation.SetLogger(zap.New(core))
	defer deprecation.SetLogger(nil)

	cfg, err := Parse([]byte("slave_databases: [shadow-1, shadow-2]"))
	require.NoError(t, err)

	assert.Equal(t, []string{"shadow-1", "shadow-2"}, cfg.Replicas())
	assert.Equal(t, []string{"shadow-1", "shadow-2"}, cfg.Replicas())
	assert.Equal(t, 1, logs.Len(), "deprecated key should warn once")

	t.Run("new key wins", func(t *testing.T) {
		cfg.ReplicaDatabases = []string{"replica-1"}
		assert.Equal(t, []string{"replica-1"}, cfg.Replicas())
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errs   []string
	}{
		{
			name:   "empty primary",
			mutate: func(c *Config) { c.Primary = "" },
			errs:   []string{"primary: must not be empty"},
		},
		{
			name:   "replica is primary",
			mutate: func(c *Config) { c.ReplicaDatabases = []string{"default"} },
			errs:   []string{`"default" is the primary`},
		},
		{
			name:   "duplicate replica",
			mutate: func(c *Config) { c.ReplicaDatabases = []string{"r1", "r1"} },
			errs:   []string{`"r1" listed twice`},
		},
		{
			name: "unknown aliases",
			mutate: func(c *Config) {
				c.Primary = "main"
				c.ReplicaDatabases = []string{"r1"}
				c.Databases = map[string]database.Config{"default": {}}
			},
			errs: []string{`primary: "main" is not in databases`, `"r1" is not in databases`},
		},
		{
			name:   "pin window",
			mutate: func(c *Config) { c.Pinning.Seconds = 0 },
			errs:   []string{"pinning.seconds"},
		},
		{
			name:   "same site none without secure",
			mutate: func(c *Config) { c.Pinning.SameSite = "none" },
			errs:   []string{"none requires secure"},
		},
		{
			name: "several at once",
			mutate: func(c *Config) {
				c.Pinning.Cookie = ""
				c.Pinning.SameSite = "sideways"
				c.Log.Level = "loud"
				c.Server.Port = 70000
			},
			errs: []string{"pinning.cookie", "sideways", "logging: invalid level", "server.port"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Len(t, multierr.Errors(err), len(tt.errs))
			for _, want := range tt.errs {
				assert.Contains(t, err.Error(), want)
			}
		})
	}

	t.Run("test mode mirrors replicas", func(t *testing.T) {
		cfg := Default()
		cfg.Test = true
		cfg.Databases = map[string]database.Config{"default": {}}
		cfg.ReplicaDatabases = []string{"r1"}
		assert.NoError(t, cfg.Validate())
	})
}

func TestMiddlewareOptions(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	opts := cfg.MiddlewareOptions(nil)
	assert.Equal(t, "multidb_pin_writes", opts.Cookie)
	assert.Equal(t, 30*time.Second, opts.Window)
	assert.True(t, opts.Secure)
	assert.True(t, opts.HTTPOnly)
	assert.Equal(t, http.SameSiteStrictMode, opts.SameSite)

	assert.True(t, opts.Policy.ShouldPin(filters.Input{Method: http.MethodGet, Operation: "accounts.login"}))
	assert.True(t, opts.Policy.ShouldPin(filters.Input{Method: http.MethodPost}))
	assert.False(t, opts.Policy.ShouldPin(filters.Input{Method: http.MethodGet, Operation: "notes.list"}))
}

func TestLoadFromEnv(t *testing.T) {
	deprecation.Reset()
	t.Setenv("MULTIDB_PORT", "9100")
	t.Setenv("MULTIDB_LOG_LEVEL", "warn")
	t.Setenv("MULTIDB_PRIMARY", "main")
	t.Setenv("MULTIDB_REPLICA_DATABASES", "r1, r2,,")
	t.Setenv("MULTIDB_PINNING_COOKIE", "pin")
	t.Setenv("MULTIDB_PINNING_SECONDS", "60")
	t.Setenv("MULTIDB_PINNING_SECURE", "true")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "main", cfg.Primary)
	assert.Equal(t, []string{"r1", "r2"}, cfg.ReplicaDatabases)
	assert.Equal(t, "pin", cfg.Pinning.Cookie)
	assert.Equal(t, 60, cfg.Pinning.Seconds)
	assert.True(t, cfg.Pinning.Secure)

	t.Run("bad numbers are ignored", func(t *testing.T) {
		t.Setenv("MULTIDB_PORT", "eighty")
		cfg := Default()
		LoadFromEnv(cfg)
		assert.Equal(t, 8000, cfg.Server.Port)
	})

	t.Run("deprecated replica variable", func(t *testing.T) {
		t.Setenv("MULTIDB_REPLICA_DATABASES", "")
		t.Setenv("MULTIDB_SLAVE_DATABASES", "shadow")
		cfg := Default()
		LoadFromEnv(cfg)
		assert.Equal(t, []string{"shadow"}, cfg.Replicas())
		assert.True(t, deprecation.Seen("MULTIDB_SLAVE_DATABASES"))
	})
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("MULTIDB_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnvOrDefault("MULTIDB_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("MULTIDB_TEST_UNSET", "fallback"))
}
