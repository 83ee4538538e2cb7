// Package config layers convert2group settings: defaults, then an optional
// config file, then C2G_ environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Keys.
const (
	KeyDB      = "db"
	KeyDispose = "dispose"
	KeyArchive = "archive"
	KeyReport  = "report"
	KeyTest    = "test"
	KeyMetrics = "metrics"
	KeyVerbose = "verbose"
)

// EnvPrefix prefixes every environment variable, e.g. C2G_DB.
const EnvPrefix = "C2G"

// FileName is the config file searched for, without extension.
const FileName = "convert2group"

// Config holds the settings of one convert2group invocation.
type Config struct {
	DB      string `mapstructure:"db"`
	Dispose string `mapstructure:"dispose"`
	Archive string `mapstructure:"archive"`
	Report  string `mapstructure:"report"`
	Test    bool   `mapstructure:"test"`
	Metrics string `mapstructure:"metrics"`
	Verbose bool   `mapstructure:"verbose"`
}

// New returns a viper instance with defaults, environment binding and the
// config search path set up. Callers bind their flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyDB, "convert2group.db")
	v.SetDefault(KeyDispose, "disable")
	v.SetDefault(KeyArchive, "disposed-comps.xml")
	v.SetDefault(KeyReport, "convert2group-report.txt")
	v.SetDefault(KeyTest, false)
	v.SetDefault(KeyMetrics, "")
	v.SetDefault(KeyVerbose, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", FileName))
	}
	return v
}

// Load reads the config file and returns the merged settings. An explicit
// file must exist; when file is empty a missing config file is not an
// error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have a fixed set of choices.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Dispose) {
	case "delete", "disable":
	default:
		return fmt.Errorf("invalid %s %q: must be delete or disable", KeyDispose, c.Dispose)
	}
	if c.DB == "" {
		return fmt.Errorf("%s must not be empty", KeyDB)
	}
	if c.Archive == "" {
		return fmt.Errorf("%s must not be empty", KeyArchive)
	}
	return nil
}
