// Package config loads daemon configuration: process environment for the
// deployment-level settings and an optional YAML screen profile for
// per-terminal presentation choices.
package config

import (
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-level configuration of the board daemon.
type Config struct {
	// APIURL is the backend root URL.
	APIURL string `env:"BOARDLINK_API_URL,required"`
	// WSURL is the realtime feed URL; empty disables the feed.
	WSURL string `env:"BOARDLINK_WS_URL"`
	// AppVersion is echoed on every request as X-App-Version.
	AppVersion string `env:"BOARDLINK_APP_VERSION" envDefault:"dev"`
	// RefreshInterval is a cron-style @every schedule for the board poll.
	RefreshInterval string `env:"BOARDLINK_REFRESH_INTERVAL" envDefault:"@every 30s"`
	// InsightsInterval is the analytics poll schedule.
	InsightsInterval string `env:"BOARDLINK_INSIGHTS_INTERVAL" envDefault:"@every 5m"`
	// StatusAddr is the local status API listen address.
	StatusAddr string `env:"BOARDLINK_STATUS_ADDR" envDefault:":8091"`
	// DeviceID/Name/Kind identify this terminal in heartbeats. Empty
	// DeviceID disables heartbeats.
	DeviceID   string `env:"BOARDLINK_DEVICE_ID"`
	DeviceName string `env:"BOARDLINK_DEVICE_NAME"`
	DeviceKind string `env:"BOARDLINK_DEVICE_KIND" envDefault:"kds"`
	// LogLevel is a logrus level name.
	LogLevel string `env:"BOARDLINK_LOG_LEVEL" envDefault:"info"`
	// ProfilePath points at the optional YAML screen profile.
	ProfilePath string `env:"BOARDLINK_PROFILE"`
}

// FromEnv parses and validates the environment configuration.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	parsed, err := url.Parse(c.APIURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config: BOARDLINK_API_URL must be a valid URL")
	}
	if c.WSURL != "" {
		ws, err := url.Parse(c.WSURL)
		if err != nil || (ws.Scheme != "ws" && ws.Scheme != "wss") {
			return fmt.Errorf("config: BOARDLINK_WS_URL must use ws or wss")
		}
	}
	return nil
}
