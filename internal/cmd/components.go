package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/iplens/iplens/internal/config"
	"github.com/iplens/iplens/internal/core/admission"
	"github.com/iplens/iplens/internal/core/dnsbl"
)

// loadConfig decodes the global viper state into a validated Config.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

func buildResolver(cfg *config.Config) dnsbl.Resolver {
	switch strings.ToLower(strings.TrimSpace(cfg.DNSBL.Resolver)) {
	case config.ResolverDirect:
		r := dnsbl.NewDirectResolver(cfg.DNSBL.Nameserver)
		if cfg.DNSBL.Timeout > 0 {
			r.Client.Timeout = cfg.DNSBL.Timeout
		}
		return r
	default:
		return dnsbl.NewSystemResolver(cfg.DNSBL.Nameserver)
	}
}

// buildPacer returns nil when upstream pacing is disabled.
func buildPacer(cfg *config.Config) *rate.Limiter {
	if cfg.DNSBL.UpstreamQPS <= 0 {
		return nil
	}
	burst := cfg.DNSBL.UpstreamBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.DNSBL.UpstreamQPS), burst)
}

func buildAggregator(cfg *config.Config) *dnsbl.Aggregator {
	return dnsbl.NewAggregator(&dnsbl.Prober{
		Resolver: buildResolver(cfg),
		Timeout:  cfg.DNSBL.Timeout,
		Pacer:    buildPacer(cfg),
	})
}

// statsBackend bundles the configured admission stats recorder with the
// handles serve needs for /stats, readiness and shutdown.
type statsBackend struct {
	Recorder admission.StatsRecorder
	Memory   *admission.MemoryStats
	Redis    *admission.RedisStats
}

func (b *statsBackend) Ping(ctx context.Context) error {
	if b == nil || b.Redis == nil {
		return nil
	}
	return b.Redis.Ping(ctx)
}

func (b *statsBackend) Close() error {
	if b == nil || b.Redis == nil {
		return nil
	}
	return b.Redis.Close()
}

func buildStats(cfg *config.Config) (*statsBackend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Stats.Backend)) {
	case "", config.StatsMemory:
		mem := admission.NewMemoryStats()
		return &statsBackend{Recorder: mem, Memory: mem}, nil
	case config.StatsRedis:
		rc := cfg.Stats.Redis
		rdb := redis.NewClient(&redis.Options{
			Addr:         rc.Addr,
			Password:     rc.Password,
			DB:           rc.DB,
			DialTimeout:  rc.DialTimeout,
			ReadTimeout:  rc.ReadTimeout,
			WriteTimeout: rc.WriteTimeout,
			MaxRetries:   rc.MaxRetries,
		})
		rs := admission.NewRedisStats(rdb,
			admission.WithRedisPrefix(rc.Prefix),
			admission.WithRedisTTL(rc.TTL),
			admission.WithRedisTrackClients(rc.TrackClients),
		)
		return &statsBackend{Recorder: rs, Redis: rs}, nil
	case config.StatsNone:
		return &statsBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown stats backend %q", cfg.Stats.Backend)
	}
}

func buildController(cfg *config.Config, stats *statsBackend) *admission.Controller {
	opts := []admission.Option{
		admission.WithWindow(cfg.Admission.Window),
		admission.WithSweepInterval(cfg.Admission.SweepInterval),
		admission.WithStatsTimeout(cfg.Stats.Timeout),
	}
	if stats != nil && stats.Recorder != nil {
		opts = append(opts, admission.WithStats(stats.Recorder))
	}
	return admission.NewController(opts...)
}
