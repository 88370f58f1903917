package config

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the complete magicbus configuration
type Config struct {
	Bus     BusConfig     `mapstructure:"bus" yaml:"bus"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Bench   BenchConfig   `mapstructure:"bench" yaml:"bench"`
}

// BusConfig controls bus identity
type BusConfig struct {
	// Name labels the bus in logs and reports (default: "magicbus")
	Name string `mapstructure:"name" yaml:"name"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where magicbus.log is written. Empty logs to stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// MetricsConfig controls Prometheus instrumentation
type MetricsConfig struct {
	// Enabled registers delivery counters on the bus (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Namespace prefixes every metric name (default: "magicbus")
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// BenchConfig controls the synthetic workload run by `magicbus bench`
type BenchConfig struct {
	// Messages is how many messages each publisher posts (default: 10000)
	Messages int `mapstructure:"messages" yaml:"messages"`
	// Publishers is the number of concurrent posting goroutines (default: 4)
	Publishers int `mapstructure:"publishers" yaml:"publishers"`
	// MailboxesPerType is how many mailboxes subscribe at each level of the hierarchy (default: 2)
	MailboxesPerType int `mapstructure:"mailboxes_per_type" yaml:"mailboxes_per_type"`
	// FailureEvery makes every Nth delivery fail recoverably, 0 = never (default: 0)
	FailureEvery int `mapstructure:"failure_every" yaml:"failure_every"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			Name: "magicbus",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "magicbus",
		},
		Bench: BenchConfig{
			Messages:         10000,
			Publishers:       4,
			MailboxesPerType: 2,
			FailureEvery:     0,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("bus.name", defaults.Bus.Name)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.namespace", defaults.Metrics.Namespace)

	viper.SetDefault("bench.messages", defaults.Bench.Messages)
	viper.SetDefault("bench.publishers", defaults.Bench.Publishers)
	viper.SetDefault("bench.mailboxes_per_type", defaults.Bench.MailboxesPerType)
	viper.SetDefault("bench.failure_every", defaults.Bench.FailureEvery)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// Watch reloads the configuration whenever the config file changes and
// passes each valid result to onChange. Invalid edits are reported through
// onError and otherwise ignored. Watch requires a config file to be in use.
func Watch(onChange func(*Config), onError func(error)) {
	viper.OnConfigChange(func(fsnotify.Event) {
		cfg, err := Load()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "magicbus")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".magicbus"
	}
	return filepath.Join(home, ".config", "magicbus")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
