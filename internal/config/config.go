// Package config loads and validates gateway configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                     int `mapstructure:"port"`
	ReadHeaderTimeoutSeconds int `mapstructure:"read_header_timeout_seconds"`
}

// GatewayConfig holds request defaults for the Meting surface.
type GatewayConfig struct {
	DefaultServer      string `mapstructure:"default_server"`
	PublicBaseURL      string `mapstructure:"public_base_url"`
	DefaultBitrate     int    `mapstructure:"default_bitrate"`
	DefaultPicSize     int    `mapstructure:"default_pic_size"`
	DefaultConcurrency int    `mapstructure:"default_concurrency"`
	MaxConcurrency     int    `mapstructure:"max_concurrency"`
}

// UpstreamConfig points the gateway at a Meting-compatible backend. An empty
// BaseURL selects the in-memory catalog.
type UpstreamConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RPS            float64 `mapstructure:"rps"`
	Burst          int     `mapstructure:"burst"`
	UserAgent      string  `mapstructure:"user_agent"`
}

// ProbeConfig tunes media link verification.
type ProbeConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxHops        int    `mapstructure:"max_hops"`
	UserAgent      string `mapstructure:"user_agent"`
	PauseMs        int    `mapstructure:"pause_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("METING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Hosting platforms hand out the listen port as a bare PORT variable.
	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse PORT %q: %w", raw, err)
		}
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_header_timeout_seconds", 10)
	v.SetDefault("gateway.default_server", "netease")
	v.SetDefault("gateway.public_base_url", "")
	v.SetDefault("gateway.default_bitrate", 320)
	v.SetDefault("gateway.default_pic_size", 300)
	v.SetDefault("gateway.default_concurrency", 6)
	v.SetDefault("gateway.max_concurrency", 32)
	v.SetDefault("upstream.base_url", "")
	v.SetDefault("upstream.timeout_seconds", 15)
	v.SetDefault("upstream.rps", 10)
	v.SetDefault("upstream.burst", 5)
	v.SetDefault("upstream.user_agent", "meting-gateway/1.0")
	v.SetDefault("probe.timeout_seconds", 15)
	v.SetDefault("probe.max_hops", 5)
	v.SetDefault("probe.user_agent", "Meting-Media-Check/1.0")
	v.SetDefault("probe.pause_ms", 800)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Gateway.DefaultServer) == "" {
		return fmt.Errorf("gateway.default_server must be set")
	}
	if c.Gateway.PublicBaseURL != "" {
		if err := checkHTTPURL(c.Gateway.PublicBaseURL); err != nil {
			return fmt.Errorf("gateway.public_base_url: %w", err)
		}
	}
	if c.Gateway.DefaultConcurrency <= 0 {
		return fmt.Errorf("gateway.default_concurrency must be > 0")
	}
	if c.Gateway.MaxConcurrency < c.Gateway.DefaultConcurrency {
		return fmt.Errorf("gateway.max_concurrency must be >= gateway.default_concurrency")
	}
	if c.Upstream.BaseURL != "" {
		if err := checkHTTPURL(c.Upstream.BaseURL); err != nil {
			return fmt.Errorf("upstream.base_url: %w", err)
		}
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		return fmt.Errorf("upstream.timeout_seconds must be > 0")
	}
	if c.Upstream.RPS < 0 {
		return fmt.Errorf("upstream.rps must be >= 0")
	}
	if c.Probe.TimeoutSeconds <= 0 {
		return fmt.Errorf("probe.timeout_seconds must be > 0")
	}
	if c.Probe.MaxHops <= 0 {
		return fmt.Errorf("probe.max_hops must be > 0")
	}
	if c.Probe.PauseMs < 0 {
		return fmt.Errorf("probe.pause_ms must be >= 0")
	}
	return nil
}

// ReadHeaderTimeout converts the server header timeout into a duration.
func (c Config) ReadHeaderTimeout() time.Duration {
	return time.Duration(c.Server.ReadHeaderTimeoutSeconds) * time.Second
}

// UpstreamTimeout converts the upstream timeout into a duration.
func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// ProbeTimeout converts the per-request probe timeout into a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// ProbePause is the delay between consecutive probes in a media check.
func (c Config) ProbePause() time.Duration {
	return time.Duration(c.Probe.PauseMs) * time.Millisecond
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q must be an absolute http(s) url", raw)
	}
	return nil
}
