/*
config.go - Application configuration

PURPOSE:
  Loads settings from (in increasing priority) built-in defaults, an
  optional YAML file, a .env file and SLNFS_* environment variables.
  Command-line flags in cmd/server override the result.

KEYS:
  server.port, server.cors_allowed_origins
  database.path
  log.level, log.development
  station.name
  auth.username, auth.password, auth.secret, auth.session_ttl
  backup.dir, backup.min_free_bytes, backup.interval, backup.s3.*

ENVIRONMENT:
  Nested keys map to upper snake case with the SLNFS_ prefix:
    database.path   -> SLNFS_DATABASE_PATH
    backup.s3.bucket -> SLNFS_BACKUP_S3_BUCKET

SEE ALSO:
  - cmd/server/main.go: Flag overrides and wiring
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultStationName is printed at the top of every report.
const DefaultStationName = "Sri Lakshmi Narayana Filling station"

type Config struct {
	Server struct {
		Port               int      `mapstructure:"port"`
		CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	} `mapstructure:"server"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`

	Station struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"station"`

	Auth struct {
		Username   string        `mapstructure:"username"`
		Password   string        `mapstructure:"password"`
		Secret     string        `mapstructure:"secret"`
		SessionTTL time.Duration `mapstructure:"session_ttl"`
	} `mapstructure:"auth"`

	Backup struct {
		Dir          string        `mapstructure:"dir"`
		MinFreeBytes uint64        `mapstructure:"min_free_bytes"`
		Interval     time.Duration `mapstructure:"interval"` // 0 disables scheduled backups
		S3           S3            `mapstructure:"s3"`
	} `mapstructure:"backup"`
}

// S3 configures the optional offsite copy of each backup. Any
// S3-compatible endpoint works (AWS, Cloudflare R2, MinIO).
type S3 struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// Load reads configuration. path may be empty; a missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SLNFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("database.path", "slnfs_crm.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("station.name", DefaultStationName)
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password", "admin")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.min_free_bytes", 10<<20)
	v.SetDefault("backup.interval", time.Duration(0))
	v.SetDefault("backup.s3.enabled", false)
	v.SetDefault("backup.s3.endpoint", "")
	v.SetDefault("backup.s3.region", "auto")
	v.SetDefault("backup.s3.bucket", "")
	v.SetDefault("backup.s3.access_key", "")
	v.SetDefault("backup.s3.secret_key", "")
	v.SetDefault("backup.s3.prefix", "slnfs/")
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive, got %s", c.Auth.SessionTTL)
	}
	if c.Backup.Interval < 0 {
		return fmt.Errorf("backup.interval must not be negative, got %s", c.Backup.Interval)
	}
	if c.Backup.S3.Enabled && c.Backup.S3.Bucket == "" {
		return errors.New("backup.s3.bucket is required when backup.s3.enabled is true")
	}
	return nil
}
