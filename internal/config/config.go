package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/FairForge/multidb/internal/database"
	"github.com/FairForge/multidb/internal/deprecation"
	"github.com/FairForge/multidb/internal/filters"
	"github.com/FairForge/multidb/internal/logging"
	"github.com/FairForge/multidb/internal/middleware"
)

type Config struct {
	Server    ServerConfig               `yaml:"server"`
	Log       logging.LoggerConfig       `yaml:"log"`
	Primary   string                     `yaml:"primary"`
	Databases map[string]database.Config `yaml:"databases"`

	ReplicaDatabases []string `yaml:"replica_databases"`
	// Deprecated: use ReplicaDatabases.
	SlaveDatabases []string `yaml:"slave_databases"`

	Pinning PinningConfig `yaml:"pinning"`

	// Test routes replica aliases to the primary connection.
	Test bool `yaml:"test"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type PinningConfig struct {
	Cookie     string   `yaml:"cookie"`
	Seconds    int      `yaml:"seconds"`
	Operations []string `yaml:"operations"` // always pin, whatever the method
	Secure     bool     `yaml:"secure"`
	HTTPOnly   bool     `yaml:"http_only"`
	SameSite   string   `yaml:"same_site"` // lax, strict, none
	Path       string   `yaml:"path"`
	Domain     string   `yaml:"domain"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: logging.LoggerConfig{
			Level:  logging.LevelInfo,
			Format: logging.FormatJSON,
		},
		Primary: "default",
		Pinning: PinningConfig{
			Cookie:   middleware.DefaultCookie,
			Seconds:  int(middleware.DefaultWindow / time.Second),
			HTTPOnly: true,
			SameSite: "lax",
			Path:     "/",
		},
	}
}

// Load reads a yaml file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes yaml over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Replicas returns the replica aliases, honouring the deprecated
// slave_databases key with a one-time warning.
func (c *Config) Replicas() []string {
	if len(c.SlaveDatabases) > 0 {
		deprecation.Warn("slave_databases", "slave_databases is deprecated, use replica_databases")
		if len(c.ReplicaDatabases) == 0 {
			return c.SlaveDatabases
		}
	}
	return c.ReplicaDatabases
}

// PinWindow is how long a client stays on the primary after a write.
func (c *Config) PinWindow() time.Duration {
	return time.Duration(c.Pinning.Seconds) * time.Second
}

// SameSiteMode maps the same_site key.
func (p PinningConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(p.SameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MiddlewareOptions builds the pinning middleware options. operation names
// the operation of a request for the operations allow-list.
func (c *Config) MiddlewareOptions(operation func(*http.Request) string) middleware.Options {
	policy := filters.DefaultPolicy()
	if len(c.Pinning.Operations) > 0 {
		policy = policy.With(filters.Operations(c.Pinning.Operations...))
	}
	return middleware.Options{
		Cookie:    c.Pinning.Cookie,
		Window:    c.PinWindow(),
		Path:      c.Pinning.Path,
		Domain:    c.Pinning.Domain,
		Secure:    c.Pinning.Secure,
		HTTPOnly:  c.Pinning.HTTPOnly,
		SameSite:  c.Pinning.SameSiteMode(),
		Policy:    policy,
		Operation: operation,
	}
}

// Validate reports every configuration problem at once. Having no
// replicas is not a problem. In test mode replicas mirror the primary and
// need no databases entry.
func (c *Config) Validate() error {
	var err error

	if c.Primary == "" {
		err = multierr.Append(err, errors.New("primary: must not be empty"))
	}
	if len(c.Databases) > 0 {
		if _, ok := c.Databases[c.Primary]; !ok && c.Primary != "" {
			err = multierr.Append(err, fmt.Errorf("primary: %q is not in databases", c.Primary))
		}
	}

	seen := make(map[string]bool)
	for _, alias := range c.Replicas() {
		switch {
		case alias == "":
			err = multierr.Append(err, errors.New("replica_databases: empty alias"))
		case alias == c.Primary:
			err = multierr.Append(err, fmt.Errorf("replica_databases: %q is the primary", alias))
		case seen[alias]:
			err = multierr.Append(err, fmt.Errorf("replica_databases: %q listed twice", alias))
		case len(c.Databases) > 0 && !c.Test && !hasAlias(c.Databases, alias):
			err = multierr.Append(err, fmt.Errorf("replica_databases: %q is not in databases", alias))
		}
		seen[alias] = true
	}

	if c.Pinning.Cookie == "" {
		err = multierr.Append(err, errors.New("pinning.cookie: must not be empty"))
	}
	if c.Pinning.Seconds <= 0 {
		err = multierr.Append(err, fmt.Errorf("pinning.seconds: must be positive, got %d", c.Pinning.Seconds))
	}
	switch strings.ToLower(c.Pinning.SameSite) {
	case "", "lax", "strict":
	case "none":
		if !c.Pinning.Secure {
			err = multierr.Append(err, errors.New("pinning.same_site: none requires secure"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("pinning.same_site: unknown value %q", c.Pinning.SameSite))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port: out of range: %d", c.Server.Port))
	}
	return multierr.Append(err, c.Log.Validate())
}

func hasAlias(dbs map[string]database.Config, alias string) bool {
	_, ok := dbs[alias]
	return ok
}
