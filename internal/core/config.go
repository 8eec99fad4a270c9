package core

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coregx/quill/internal/security"
)

// Config describes a database connection in a form that can be loaded from
// a YAML file:
//
//	driver: postgres
//	dsn: postgres://app@localhost/app?sslmode=disable
//	max_open_conns: 20
//	conn_max_lifetime: 30m
//	sensitive_fields: [password, token]
type Config struct {
	Driver            string        `yaml:"driver"`
	DSN               string        `yaml:"dsn"`
	MaxOpenConns      int           `yaml:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime"`
	StmtCacheCapacity int           `yaml:"stmt_cache_capacity"`
	HealthCheck       time.Duration `yaml:"health_check_interval"`
	SensitiveFields   []string      `yaml:"sensitive_fields"`
	StrictValidation  bool          `yaml:"strict_validation"`
}

// LoadConfig decodes a YAML config. Unknown keys are an error.
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("quill: decode config: %w", err)
	}
	if cfg.Driver == "" {
		return nil, fmt.Errorf("quill: config: driver is required")
	}
	return &cfg, nil
}

// Options converts the config into Open options. Zero values are skipped.
func (c *Config) Options() []Option {
	var opts []Option
	if c.MaxOpenConns > 0 {
		opts = append(opts, WithMaxOpenConns(c.MaxOpenConns))
	}
	if c.MaxIdleConns > 0 {
		opts = append(opts, WithMaxIdleConns(c.MaxIdleConns))
	}
	if c.ConnMaxLifetime > 0 {
		opts = append(opts, WithConnMaxLifetime(c.ConnMaxLifetime))
	}
	if c.StmtCacheCapacity > 0 {
		opts = append(opts, WithStmtCacheCapacity(c.StmtCacheCapacity))
	}
	if c.HealthCheck > 0 {
		opts = append(opts, WithHealthCheck(c.HealthCheck))
	}
	if len(c.SensitiveFields) > 0 {
		opts = append(opts, WithSensitiveFields(c.SensitiveFields...))
	}
	if c.StrictValidation {
		opts = append(opts, WithValidator(security.NewValidator(security.WithStrict(true))))
	}
	return opts
}

// OpenConfig opens the database described by cfg. opts are applied after
// the config's own options and win on conflict.
func OpenConfig(cfg *Config, opts ...Option) (*DB, error) {
	return Open(cfg.Driver, cfg.DSN, append(cfg.Options(), opts...)...)
}
