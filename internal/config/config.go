// Package config loads configuration for herald's example cmd/ binaries.
// The herald wire protocol itself takes no environment-driven
// configuration (SPEC_FULL.md §6); this package only configures the
// demo processes that embed the library, grounded on the teacher's
// internal/config package (go-server-3).
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// PublisherConfig configures the herald-publish example binary.
type PublisherConfig struct {
	Port       int    `mapstructure:"port"`
	BufferSize int    `mapstructure:"buffer_size"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
	Logging    LoggingConfig `mapstructure:"logging"`
}

// SubscriberConfig configures the herald-subscribe example binary.
type SubscriberConfig struct {
	Port    int           `mapstructure:"port"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// MetricsConfig controls the publisher's Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig controls zap logger level/encoding.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LoadPublisher reads herald-publish configuration from environment
// variables prefixed HERALD_ and an optional config file.
func LoadPublisher() (PublisherConfig, error) {
	v := newViper()

	v.SetDefault("port", 8080)
	v.SetDefault("buffer_size", 1024)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9096")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	_ = v.ReadInConfig()

	var cfg PublisherConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return PublisherConfig{}, fmt.Errorf("config unmarshal: %w", err)
	}
	return cfg, nil
}

// LoadSubscriber reads herald-subscribe configuration from environment
// variables prefixed HERALD_ and an optional config file.
func LoadSubscriber() (SubscriberConfig, error) {
	v := newViper()

	v.SetDefault("port", 8080)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	_ = v.ReadInConfig()

	var cfg SubscriberConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return SubscriberConfig{}, fmt.Errorf("config unmarshal: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("herald")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("HERALD")
	v.AutomaticEnv()
	return v
}
