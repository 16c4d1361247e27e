// Package config loads runtime settings from defaults, an optional YAML
// file, the environment and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config file is given and it exists.
const DefaultFile = "armeria.yaml"

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "ARMERIA_"

type Config struct {
	DBPath    string        `yaml:"db"`
	Addr      string        `yaml:"addr"`
	LogPath   string        `yaml:"log"`
	AdminUser string        `yaml:"admin_user"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Report    ReportConfig  `yaml:"report"`
	Backup    BackupConfig  `yaml:"backup"`
}

// ReportConfig configures generated documents.
type ReportConfig struct {
	// Station is the heading of the declaration, the police station it is
	// addressed to.
	Station string `yaml:"station"`
}

// BackupConfig configures scheduled database snapshots. An empty Schedule
// disables them.
type BackupConfig struct {
	Schedule string `yaml:"schedule"`
	Dir      string `yaml:"dir"`
	Keep     int    `yaml:"keep"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:    "armeria.db",
		Addr:      ":8080",
		AdminUser: "admin",
		TokenTTL:  12 * time.Hour,
		Report: ReportConfig{
			Station: "COMANDO STAZIONE CARABINIERI",
		},
		Backup: BackupConfig{
			Dir:  "backup",
			Keep: 14,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// DefaultFile when path is empty and the file exists), a .env file and
// ARMERIA_* variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// A missing .env file is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	for name, dst := range map[string]*string{
		"DB":              &c.DBPath,
		"ADDR":            &c.Addr,
		"LOG":             &c.LogPath,
		"ADMIN_USER":      &c.AdminUser,
		"REPORT_STATION":  &c.Report.Station,
		"BACKUP_SCHEDULE": &c.Backup.Schedule,
		"BACKUP_DIR":      &c.Backup.Dir,
	} {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTOKEN_TTL: %w", EnvPrefix, err)
		}
		c.TokenTTL = d
	}
	if v, ok := os.LookupEnv(EnvPrefix + "BACKUP_KEEP"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sBACKUP_KEEP: %w", EnvPrefix, err)
		}
		c.Backup.Keep = n
	}
	return nil
}

// Validate checks values that would fail later at runtime.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("database path is empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive, got %s", c.TokenTTL)
	}
	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup.keep must not be negative, got %d", c.Backup.Keep)
	}
	return nil
}

// RegisterFlags adds the flags that override configuration values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP("config", "c", "", "YAML config file (default: "+DefaultFile+" if present)")
	fs.StringP("db", "d", d.DBPath, "SQLite database path")
	fs.StringP("log", "l", "", "log file path (default: stdout/stderr only)")
	fs.String("station", d.Report.Station, "station named in declarations")
}

// ApplyFlags copies explicitly set flags into c.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	for name, dst := range map[string]*string{
		"db":      &c.DBPath,
		"log":     &c.LogPath,
		"station": &c.Report.Station,
		"addr":    &c.Addr,
		"user":    &c.AdminUser,
	} {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		*dst = f.Value.String()
	}
	return c.Validate()
}
