// Package config loads the project-portal configuration from an optional
// YAML file, PORTAL_* environment variables and built-in defaults, in that
// order of increasing precedence for the environment over the file.
// Command-line flags override both.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Spreadsheet struct {
	URL          string        `mapstructure:"url"`
	Range        string        `mapstructure:"range"`
	LogRange     string        `mapstructure:"log-range"`
	Credentials  string        `mapstructure:"credentials"`
	Tokens       string        `mapstructure:"tokens"`
	PollInterval time.Duration `mapstructure:"poll-interval"`
}

type Store struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api-key"`
	Table    string        `mapstructure:"table"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Sync struct {
	Interval       time.Duration `mapstructure:"interval"`
	RunTimeout     time.Duration `mapstructure:"run-timeout"`
	BatchSize      int           `mapstructure:"batch-size"`
	FanOut         int           `mapstructure:"fan-out"`
	PageSize       int           `mapstructure:"page-size"`
	MaxAttempts    int           `mapstructure:"max-attempts"`
	InitialBackoff time.Duration `mapstructure:"initial-backoff"`
	MaxBackoff     time.Duration `mapstructure:"max-backoff"`

	// RemovalPolicy has no default. 'delete', 'archive' and 'ignore' carry
	// materially different data-loss risk so the choice has to be explicit.
	RemovalPolicy string `mapstructure:"removal-policy"`
}

type Cache struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type Serve struct {
	Addr string `mapstructure:"addr"`
}

type Config struct {
	Spreadsheet Spreadsheet `mapstructure:"spreadsheet"`
	Store       Store       `mapstructure:"store"`
	Sync        Sync        `mapstructure:"sync"`
	Cache       Cache       `mapstructure:"cache"`
	Serve       Serve       `mapstructure:"serve"`
}

// Load reads the configuration file at path (falling back to the standard
// locations when path is blank) and applies PORTAL_* environment overrides
// e.g. PORTAL_STORE_API_KEY overrides store.api-key.
func Load(path string) (*Config, error) {
	v := viper.New()

	// AutomaticEnv only surfaces keys viper already knows about, so the
	// string keys get blank defaults
	v.SetDefault("spreadsheet.url", "")
	v.SetDefault("spreadsheet.range", "")
	v.SetDefault("spreadsheet.log-range", "")
	v.SetDefault("spreadsheet.credentials", "")
	v.SetDefault("spreadsheet.tokens", "")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.api-key", "")
	v.SetDefault("store.table", "")
	v.SetDefault("sync.removal-policy", "")

	v.SetDefault("spreadsheet.poll-interval", time.Minute)
	v.SetDefault("store.timeout", 30*time.Second)
	v.SetDefault("sync.interval", time.Hour)
	v.SetDefault("sync.run-timeout", 10*time.Minute)
	v.SetDefault("sync.batch-size", 50)
	v.SetDefault("sync.fan-out", 4)
	v.SetDefault("sync.page-size", 500)
	v.SetDefault("sync.max-attempts", 4)
	v.SetDefault("sync.initial-backoff", 500*time.Millisecond)
	v.SetDefault("sync.max-backoff", 30*time.Second)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("serve.addr", ":8080")

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("project-portal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/usr/local/etc/project-portal")
	}

	if err := v.ReadInConfig(); err != nil {
		var notfound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notfound) {
			return nil, fmt.Errorf("could not load configuration (%w)", err)
		}
	}

	config := Config{}
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration (%w)", err)
	}

	return &config, nil
}
