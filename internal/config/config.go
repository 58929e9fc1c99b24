// Package config loads the server configuration.
//
// Values come from, in increasing priority: built-in defaults, impa.yaml in
// the data directory, the .env file in the data directory, and the process
// environment. Command line flags are applied last by the caller.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/impa/website/internal/email"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file name inside the data directory.
const FileName = "impa.yaml"

// Config is the whole server configuration.
type Config struct {
	// HTTP is the listen address.
	HTTP string `yaml:"http"`
	// CORSOrigin is the origin allowed to call the API, also reported as the
	// frontend URL.
	CORSOrigin string `yaml:"cors_origin"`
	LogLevel   string `yaml:"log_level"`
	// LogFile enables a rotated log file in addition to stderr.
	LogFile string `yaml:"log_file,omitempty"`

	Storage Storage `yaml:"storage"`
	Admin   Admin   `yaml:"admin"`

	// JWTSecret is hex encoded. Generated on first load when empty.
	JWTSecret string `yaml:"jwt_secret"`

	SMTP email.Config `yaml:"smtp"`
	// ContactTo receives contact form messages. Defaults to SMTP.From.
	ContactTo string `yaml:"contact_to,omitempty"`

	Push Push `yaml:"push"`

	// GeoDB is the path of a MaxMind country database used for the login
	// audit.
	GeoDB string `yaml:"geo_db,omitempty"`
	// History commits the content directory to git after every save. Only
	// used with the file storage backend.
	History bool `yaml:"history"`
	// MCP serves the read-only tool server at /mcp.
	MCP bool `yaml:"mcp"`

	RateLimits RateLimits `yaml:"rate_limits"`
	// MaxRequestBodyBytes bounds JSON request bodies.
	MaxRequestBodyBytes int64 `yaml:"max_request_body_bytes"`
}

// Storage selects the kv backend.
type Storage struct {
	// Backend is one of memory, file, sqlite, postgres or mongo.
	Backend string `yaml:"backend"`
	// DSN is the directory for file, the data source name for SQL and the
	// URI for mongo. A relative file or sqlite DSN is resolved against the
	// data directory.
	DSN string `yaml:"dsn,omitempty"`
}

// Admin holds the credentials of the single site administrator.
type Admin struct {
	Username string `yaml:"username"`
	// PasswordHash is a bcrypt hash. When empty Password is used.
	PasswordHash string `yaml:"password_hash,omitempty"`
	Password     string `yaml:"password,omitempty"`
}

// Push holds the VAPID key pair. Web push is disabled when either is empty.
type Push struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key,omitempty"`
	VAPIDPrivateKey string `yaml:"vapid_private_key,omitempty"`
	// Subscriber is the contact sent to push services, a mailto: or https URL.
	Subscriber string `yaml:"subscriber,omitempty"`
}

// Enabled reports whether both keys are set.
func (p *Push) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// RateLimits are in requests per minute per client. 0 disables the limit.
type RateLimits struct {
	AuthPerMin  int `yaml:"auth_per_min"`
	WritePerMin int `yaml:"write_per_min"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTP:       ":3001",
		CORSOrigin: "http://localhost:3000",
		LogLevel:   "info",
		Storage:    Storage{Backend: "file", DSN: "content"},
		Admin:      Admin{Username: "impa2025", Password: "1234"},
		RateLimits: RateLimits{
			AuthPerMin:  5,
			WritePerMin: 60,
		},
		MaxRequestBodyBytes: 10 << 20,
	}
}

// Load reads dataDir/impa.yaml over the defaults. The file is created when
// missing, and rewritten when a JWT secret had to be generated.
func Load(dataDir string) (*Config, error) {
	cfg := Default()
	path := filepath.Join(dataDir, FileName)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is built from the data directory
	missing := errors.Is(err, os.ErrNotExist)
	if err != nil && !missing {
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
	}
	generated := false
	if cfg.JWTSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.JWTSecret = hex.EncodeToString(b)
		generated = true
	}
	if missing || generated {
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Save writes the configuration to dataDir/impa.yaml.
func (c *Config) Save(dataDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, FileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}

// Secret returns the decoded JWT secret.
func (c *Config) Secret() ([]byte, error) {
	b, err := hex.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("jwt_secret: %w", err)
	}
	return b, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	secret, err := c.Secret()
	if err != nil {
		return err
	}
	if len(secret) < 32 {
		return errors.New("jwt_secret must be at least 32 bytes")
	}
	if c.Admin.Username == "" {
		return errors.New("admin.username is required")
	}
	if c.Admin.PasswordHash == "" && c.Admin.Password == "" {
		return errors.New("admin.password or admin.password_hash is required")
	}
	switch c.Storage.Backend {
	case "memory", "file", "sqlite", "postgres", "mongo", "mongodb":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend != "memory" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for %s", c.Storage.Backend)
	}
	if c.SMTP.Enabled() {
		if err := c.SMTP.Validate(); err != nil {
			return err
		}
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		return errors.New("push.vapid_public_key and push.vapid_private_key must both be set or both be empty")
	}
	if c.RateLimits.AuthPerMin < 0 || c.RateLimits.WritePerMin < 0 {
		return errors.New("rate_limits must be non-negative")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return errors.New("max_request_body_bytes must be positive")
	}
	return nil
}

// StorageDSN returns the DSN with relative paths resolved against dataDir
// for the file and sqlite backends.
func (c *Config) StorageDSN(dataDir string) string {
	dsn := c.Storage.DSN
	switch c.Storage.Backend {
	case "file", "sqlite":
		if dsn != "" && !filepath.IsAbs(dsn) && !strings.HasPrefix(dsn, "file:") {
			return filepath.Join(dataDir, dsn)
		}
	}
	return dsn
}

// envKeys lists the environment variables and the field they set, in
// application order.
var envKeys = []struct {
	name string
	set  func(c *Config, v string) error
}{
	{"HTTP", func(c *Config, v string) error { c.HTTP = v; return nil }},
	{"PORT", func(c *Config, v string) error {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		host, _, err := net.SplitHostPort(c.HTTP)
		if err != nil {
			host = ""
		}
		c.HTTP = net.JoinHostPort(host, v)
		return nil
	}},
	{"CORS_ORIGIN", func(c *Config, v string) error { c.CORSOrigin = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{"STORAGE_BACKEND", func(c *Config, v string) error { c.Storage.Backend = v; return nil }},
	{"STORAGE_DSN", func(c *Config, v string) error { c.Storage.DSN = v; return nil }},
	{"ADMIN_USERNAME", func(c *Config, v string) error { c.Admin.Username = v; return nil }},
	{"ADMIN_PASSWORD", func(c *Config, v string) error {
		c.Admin.Password = v
		c.Admin.PasswordHash = ""
		return nil
	}},
	{"GEO_DB", func(c *Config, v string) error { c.GeoDB = v; return nil }},
	{"SMTP_HOST", func(c *Config, v string) error { c.SMTP.Host = v; return nil }},
	{"SMTP_PORT", func(c *Config, v string) error { c.SMTP.Port = v; return nil }},
	{"SMTP_USERNAME", func(c *Config, v string) error { c.SMTP.Username = v; return nil }},
	{"SMTP_PASSWORD", func(c *Config, v string) error { c.SMTP.Password = v; return nil }},
	{"SMTP_FROM", func(c *Config, v string) error { c.SMTP.From = v; return nil }},
}

// ApplyEnv overrides fields from dotenv and then from the process
// environment.
func (c *Config) ApplyEnv(dotenv map[string]string) error {
	for _, src := range []func(string) (string, bool){
		func(k string) (string, bool) { v, ok := dotenv[k]; return v, ok },
		os.LookupEnv,
	} {
		for _, k := range envKeys {
			if v, ok := src(k.name); ok && v != "" {
				if err := k.set(c, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// LoadDotEnv parses dataDir/.env. A missing file yields an empty map.
func LoadDotEnv(dataDir string) (map[string]string, error) {
	env := make(map[string]string)
	path := filepath.Join(dataDir, ".env")
	content, err := os.ReadFile(path) //nolint:gosec // G304: path is built from the data directory
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return env, nil
		}
		return nil, err
	}
	for line := range strings.SplitSeq(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if strings.HasPrefix(val, "'") || strings.HasSuffix(val, "'") {
			if strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") {
				return nil, fmt.Errorf("single quotes are not supported for wrapping in .env: %s", line)
			}
			return nil, fmt.Errorf("unbalanced single quotes in .env: %s", line)
		}
		if strings.HasPrefix(val, "\"") {
			unquoted, err := strconv.Unquote(val)
			if err != nil {
				return nil, fmt.Errorf("failed to unquote %s: %w", key, err)
			}
			val = unquoted
		}
		env[key] = val
	}
	return env, nil
}
