// Package config loads iplens configuration from viper (defaults, YAML file,
// environment) into a typed Config.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/iplens/iplens/internal/core"
	"github.com/iplens/iplens/internal/core/dnsbl"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IPLENS"

// Resolver and stats backend names.
const (
	ResolverSystem = "system"
	ResolverDirect = "direct"

	StatsMemory = "memory"
	StatsRedis  = "redis"
	StatsNone   = "none"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.trust_proxy_headers", true)

	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("admission.window", "60s")
	v.SetDefault("rate_limits", map[string]any{"blacklist": 20})

	v.SetDefault("dnsbl.timeout", "5s")
	v.SetDefault("dnsbl.resolver", ResolverSystem)
	v.SetDefault("dnsbl.nameserver", "")
	v.SetDefault("dnsbl.upstream_qps", 0)
	v.SetDefault("dnsbl.upstream_burst", 10)
	v.SetDefault("dnsbl.lists_file", "")

	v.SetDefault("stats.backend", StatsMemory)
	v.SetDefault("stats.redis.addr", "localhost:6379")
	v.SetDefault("stats.redis.db", 0)
	v.SetDefault("stats.redis.prefix", "iplens:admission")
	v.SetDefault("stats.redis.ttl", "24h")
	v.SetDefault("stats.redis.track_clients", false)
	v.SetDefault("stats.timeout", "100ms")
	v.SetDefault("stats.redis.dial_timeout", "500ms")
	v.SetDefault("stats.redis.read_timeout", "200ms")
	v.SetDefault("stats.redis.write_timeout", "200ms")
	v.SetDefault("stats.redis.max_retries", 1)
}

// Load decodes v's settings, applies IPLENS_* overrides, resolves the list
// catalog and validates the result. The loaded config becomes the current one.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	settings := v.AllSettings()

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	mergeSettings(settings, envOverrides)

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	lists, err := cfg.resolveLists()
	if err != nil {
		return nil, err
	}
	cfg.DNSBL.Lists = lists

	if cfg.Admission.SweepInterval <= 0 {
		cfg.Admission.SweepInterval = cfg.Admission.Window
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// resolveLists picks the catalog source: lists_file, then inline lists, then
// the built-in defaults.
func (c *Config) resolveLists() ([]core.BlacklistDefinition, error) {
	if path := strings.TrimSpace(c.DNSBL.ListsFile); path != "" {
		return dnsbl.LoadListsFile(path)
	}
	if len(c.DNSBL.Lists) > 0 {
		lists, err := dnsbl.NormalizeLists(c.DNSBL.Lists)
		if err != nil {
			return nil, fmt.Errorf("dnsbl.lists: %w", err)
		}
		return lists, nil
	}
	return dnsbl.DefaultLists(), nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.Admission.Window < time.Second:
		return fmt.Errorf("admission.window must be at least 1s, got %s", c.Admission.Window)
	case c.DNSBL.Timeout <= 0:
		return fmt.Errorf("dnsbl.timeout must be positive, got %s", c.DNSBL.Timeout)
	case c.DNSBL.UpstreamQPS < 0:
		return fmt.Errorf("dnsbl.upstream_qps must not be negative")
	case c.Stats.Timeout < 0:
		return fmt.Errorf("stats.timeout must not be negative, got %s", c.Stats.Timeout)
	}

	switch strings.ToLower(c.DNSBL.Resolver) {
	case ResolverSystem:
	case ResolverDirect:
		if strings.TrimSpace(c.DNSBL.Nameserver) == "" {
			return fmt.Errorf("dnsbl.nameserver is required for the direct resolver")
		}
	default:
		return fmt.Errorf("dnsbl.resolver must be %q or %q, got %q", ResolverSystem, ResolverDirect, c.DNSBL.Resolver)
	}

	switch strings.ToLower(c.Stats.Backend) {
	case StatsMemory, StatsNone:
	case StatsRedis:
		if strings.TrimSpace(c.Stats.Redis.Addr) == "" {
			return fmt.Errorf("stats.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("stats.backend must be memory, redis or none, got %q", c.Stats.Backend)
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// getEnvSpecs maps IPLENS_* variables to config paths. Durations are strings
// converted by the decode hook.
func getEnvSpecs() []EnvVarSpec {
	prefix := EnvPrefix + "_"

	return []EnvVarSpec{
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},
		{Name: prefix + "TRUST_PROXY_HEADERS", Path: []string{"server", "trust_proxy_headers"}, Type: EnvBool},

		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},

		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		{Name: prefix + "ADMISSION_WINDOW", Path: []string{"admission", "window"}, Type: EnvString},
		{Name: prefix + "ADMISSION_SWEEP_INTERVAL", Path: []string{"admission", "sweep_interval"}, Type: EnvString},
		{Name: prefix + "BLACKLIST_RATE_LIMIT", Path: []string{"rate_limits", "blacklist"}, Type: EnvInt},

		{Name: prefix + "DNSBL_TIMEOUT", Path: []string{"dnsbl", "timeout"}, Type: EnvString},
		{Name: prefix + "DNSBL_RESOLVER", Path: []string{"dnsbl", "resolver"}, Type: EnvString},
		{Name: prefix + "DNSBL_NAMESERVER", Path: []string{"dnsbl", "nameserver"}, Type: EnvString},
		{Name: prefix + "DNSBL_UPSTREAM_QPS", Path: []string{"dnsbl", "upstream_qps"}, Type: EnvString},
		{Name: prefix + "DNSBL_UPSTREAM_BURST", Path: []string{"dnsbl", "upstream_burst"}, Type: EnvInt},
		{Name: prefix + "DNSBL_LISTS_FILE", Path: []string{"dnsbl", "lists_file"}, Type: EnvString},

		{Name: prefix + "STATS_BACKEND", Path: []string{"stats", "backend"}, Type: EnvString},
		{Name: prefix + "STATS_TIMEOUT", Path: []string{"stats", "timeout"}, Type: EnvString},
		{Name: prefix + "REDIS_ADDR", Path: []string{"stats", "redis", "addr"}, Type: EnvString},
		{Name: prefix + "REDIS_PASSWORD", Path: []string{"stats", "redis", "password"}, Type: EnvString},
		{Name: prefix + "REDIS_DB", Path: []string{"stats", "redis", "db"}, Type: EnvInt},
	}
}

// mergeSettings deep-merges src into dst; src wins on conflicts.
func mergeSettings(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeSettings(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			copied := make(map[string]any, len(srcMap))
			mergeSettings(copied, srcMap)
			dst[key] = copied
			continue
		}
		dst[key] = value
	}
}
