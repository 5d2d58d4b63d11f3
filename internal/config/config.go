package config

import (
	"time"

	"github.com/iplens/iplens/internal/core"
)

// Config represents the complete application configuration. Values come from
// defaults, an optional YAML file, then environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Admission AdmissionConfig `mapstructure:"admission"`
	DNSBL     DNSBLConfig     `mapstructure:"dnsbl"`
	Stats     StatsConfig     `mapstructure:"stats"`

	// RateLimits maps an endpoint key to its per-window request limit.
	RateLimits map[string]int `mapstructure:"rate_limits"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// TrustProxyHeaders enables X-Forwarded-For / X-Real-IP for client
	// identity. Disable when the service is reachable without a proxy.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated exporter port; /metrics on the main port proxies it.
	Port int `mapstructure:"port"`
}

// AdmissionConfig controls the fixed-window rate limiter.
type AdmissionConfig struct {
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// DNSBLConfig controls blacklist lookups.
type DNSBLConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`

	// Resolver is "system" (net.Resolver) or "direct" (raw DNS to Nameserver).
	Resolver   string `mapstructure:"resolver"`
	Nameserver string `mapstructure:"nameserver"`

	// UpstreamQPS caps outbound queries per second; 0 disables pacing.
	UpstreamQPS   float64 `mapstructure:"upstream_qps"`
	UpstreamBurst int     `mapstructure:"upstream_burst"`

	Lists     []core.BlacklistDefinition `mapstructure:"lists"`
	ListsFile string                     `mapstructure:"lists_file"`
}

// StatsConfig selects where admission decisions are counted.
type StatsConfig struct {
	// Backend is memory, redis or none.
	Backend string `mapstructure:"backend"`

	// Timeout bounds how long one admission decision waits on the backend.
	Timeout time.Duration `mapstructure:"timeout"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig configures the Redis stats backend.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Prefix       string        `mapstructure:"prefix"`
	TTL          time.Duration `mapstructure:"ttl"`
	TrackClients bool          `mapstructure:"track_clients"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxRetries of -1 disables retries.
	MaxRetries int `mapstructure:"max_retries"`
}
