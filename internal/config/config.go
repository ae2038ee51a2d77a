package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.tablewright/tablewright.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Connection ConnectionConfig `yaml:"connection"`
	Alter      AlterConfig      `yaml:"alter,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty"`
	Logging    LogConfig        `yaml:"logging,omitempty"`
}

// ConnectionConfig defines the database the alterations run against.
// DSN, when set, is passed to the driver verbatim.
type ConnectionConfig struct {
	Dialect  string            `yaml:"dialect"` // mysql, postgresql, sqlite, mssql, oracle
	Host     string            `yaml:"host,omitempty"`
	Port     int               `yaml:"port,omitempty"`
	Database string            `yaml:"database"` // file path for sqlite
	Schema   string            `yaml:"schema,omitempty"`
	Username string            `yaml:"username,omitempty"`
	Password string            `yaml:"password,omitempty"`
	DSN      string            `yaml:"dsn,omitempty"`
	SSL      bool              `yaml:"ssl,omitempty"`
	Options  map[string]string `yaml:"options,omitempty"`
}

// AlterConfig tunes how alterations are planned and applied.
type AlterConfig struct {
	VerifyRowCounts bool              `yaml:"verify_row_counts,omitempty"`
	ShadowInfix     string            `yaml:"shadow_infix,omitempty"` // default _tw_
	Confirm         bool              `yaml:"confirm,omitempty"`
	TypeAliases     map[string]string `yaml:"type_aliases,omitempty"`
}

// ServerConfig defines the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port,omitempty"` // default 8230
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level         string `yaml:"level,omitempty"`          // debug, info, warn, error
	Directory     string `yaml:"directory,omitempty"`      // default ~/.tablewright/logs/
	RetentionDays int    `yaml:"retention_days,omitempty"` // default 30
}

// Load reads and parses the config file from the given path. A .env file
// next to the config, or in the working directory, is loaded first so
// ${ENV:...} references can use it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// loadDotEnv loads the first .env file that exists. Variables already in
// the environment win.
func loadDotEnv(candidates ...string) error {
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("checking %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
		return nil
	}
	return nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	if c.Connection.Port == 0 {
		switch strings.ToLower(c.Connection.Dialect) {
		case "mysql", "mariadb":
			c.Connection.Port = 3306
		case "postgresql", "postgres", "pgsql":
			c.Connection.Port = 5432
		case "mssql", "sqlserver":
			c.Connection.Port = 1433
		case "oracle":
			c.Connection.Port = 1521
		}
	}
	if c.Connection.Schema == "" {
		switch strings.ToLower(c.Connection.Dialect) {
		case "postgresql", "postgres", "pgsql":
			c.Connection.Schema = "public"
		case "mssql", "sqlserver":
			c.Connection.Schema = "dbo"
		}
	}
	if c.Alter.ShadowInfix == "" {
		c.Alter.ShadowInfix = "_tw_"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8230
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.tablewright/logs/")
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = 30
	}
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.Connection.Password, err = ResolveValue(c.Connection.Password)
	if err != nil {
		return fmt.Errorf("connection password: %w", err)
	}
	c.Connection.Username, err = ResolveValue(c.Connection.Username)
	if err != nil {
		return fmt.Errorf("connection username: %w", err)
	}
	c.Connection.DSN, err = ResolveValue(c.Connection.DSN)
	if err != nil {
		return fmt.Errorf("connection dsn: %w", err)
	}
	return nil
}

// ResolveValue resolves secret references in a string value.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
