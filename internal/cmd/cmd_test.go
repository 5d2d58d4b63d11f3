package cmd

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iplens/iplens/internal/config"
	"github.com/iplens/iplens/internal/core"
	"github.com/iplens/iplens/internal/core/dnsbl"
	"github.com/iplens/iplens/internal/observability"
	"github.com/iplens/iplens/internal/output"
)

func testConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

type listedResolver struct{ listed map[string]bool }

func (r listedResolver) LookupA(_ context.Context, host string) ([]netip.Addr, error) {
	for zone := range r.listed {
		if strings.HasSuffix(host, "."+zone) {
			return []netip.Addr{netip.MustParseAddr("127.0.0.2")}, nil
		}
	}
	return nil, errors.New("no such host")
}

func TestBuildResolver(t *testing.T) {
	cfg := testConfig(t, nil)
	_, ok := buildResolver(cfg).(*dnsbl.SystemResolver)
	assert.True(t, ok)

	cfg = testConfig(t, map[string]any{
		"dnsbl.resolver":   "direct",
		"dnsbl.nameserver": "192.0.2.53",
		"dnsbl.timeout":    "2s",
	})
	direct, ok := buildResolver(cfg).(*dnsbl.DirectResolver)
	require.True(t, ok)
	assert.Equal(t, "192.0.2.53:53", direct.Nameserver)
	assert.Equal(t, 2*time.Second, direct.Client.Timeout)
}

func TestBuildPacer(t *testing.T) {
	assert.Nil(t, buildPacer(testConfig(t, nil)))

	pacer := buildPacer(testConfig(t, map[string]any{
		"dnsbl.upstream_qps":   50,
		"dnsbl.upstream_burst": 0,
	}))
	require.NotNil(t, pacer)
	assert.Equal(t, 1, pacer.Burst())
	assert.InDelta(t, 50, float64(pacer.Limit()), 0.001)
}

func TestBuildStats(t *testing.T) {
	mem, err := buildStats(testConfig(t, nil))
	require.NoError(t, err)
	require.NotNil(t, mem.Memory)
	assert.Nil(t, mem.Redis)
	assert.NoError(t, mem.Ping(context.Background()))
	assert.NoError(t, mem.Close())

	none, err := buildStats(testConfig(t, map[string]any{"stats.backend": "none"}))
	require.NoError(t, err)
	assert.Nil(t, none.Recorder)

	rs, err := buildStats(testConfig(t, map[string]any{"stats.backend": "redis"}))
	require.NoError(t, err)
	require.NotNil(t, rs.Redis)
	assert.Nil(t, rs.Memory)
	assert.NoError(t, rs.Close())

	cfg := testConfig(t, nil)
	cfg.Stats.Backend = "etcd"
	_, err = buildStats(cfg)
	assert.Error(t, err)
}

func TestBuildControllerRecordsToMemoryStats(t *testing.T) {
	cfg := testConfig(t, map[string]any{"admission.window": "30s"})
	stats, err := buildStats(cfg)
	require.NoError(t, err)

	controller := buildController(cfg, stats)
	assert.Equal(t, 30*time.Second, controller.Window())

	controller.Check("client", "blacklist", 1)
	controller.Check("client", "blacklist", 1)

	snap := stats.Memory.Snapshot()
	assert.Equal(t, int64(1), snap.Total.Allowed)
	assert.Equal(t, int64(1), snap.Total.Denied)
}

func TestRunCheck(t *testing.T) {
	observability.InitCLILogger("test", false)

	lists := dnsbl.DefaultLists()
	agg := dnsbl.NewAggregator(&dnsbl.Prober{
		Resolver: listedResolver{listed: map[string]bool{lists[0].Host: true}},
		Timeout:  time.Second,
	})

	result, err := runCheck(context.Background(), agg, " 127.0.0.2 ", lists)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ListedCount)
	assert.Equal(t, len(lists), result.Total)
	assert.True(t, result.Checks[0].Listed)

	_, err = runCheck(context.Background(), agg, "not-an-ip", lists)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid IP address format")
}

func TestApplyCheckOverrides(t *testing.T) {
	cfg := testConfig(t, nil)
	require.NoError(t, checkCmd.ParseFlags([]string{"--timeout", "750ms", "--resolver", "DIRECT", "--nameserver", "192.0.2.1"}))
	t.Cleanup(func() {
		for _, name := range []string{"timeout", "resolver", "nameserver"} {
			f := checkCmd.Flags().Lookup(name)
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})

	require.NoError(t, applyCheckOverrides(checkCmd, cfg))
	assert.Equal(t, 750*time.Millisecond, cfg.DNSBL.Timeout)
	assert.Equal(t, config.ResolverDirect, cfg.DNSBL.Resolver)
	assert.Equal(t, "192.0.2.1", cfg.DNSBL.Nameserver)
}

func TestOutputHelpers(t *testing.T) {
	assert.Equal(t, "2001-db8-1", sanitizeFilename("2001:db8::1"))
	assert.Equal(t, "192.0.2.1", sanitizeFilename(" 192.0.2.1 "))
	assert.Equal(t, "output", sanitizeFilename("::"))

	assert.Equal(t, "json", outputExtension(output.FormatJSON))
	assert.Equal(t, "md", outputExtension(output.FormatMarkdown))
	assert.Equal(t, "txt", outputExtension(output.FormatTable))
}

func TestOpenSinkWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	sink, err := openSink(path)
	require.NoError(t, err)
	_, err = sink.writer.Write([]byte(`{"total":4}`))
	require.NoError(t, err)
	require.NoError(t, sink.close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"total":4}`, string(data))

	stdout, err := openSink("-")
	require.NoError(t, err)
	assert.Equal(t, "-", stdout.path)
}

func TestTestPointStatus(t *testing.T) {
	assert.Contains(t, testPointStatus(core.ProbeOutcome{Name: "A", Listed: true}), "ok")
	assert.Contains(t, testPointStatus(core.ProbeOutcome{Name: "A", Error: true}), "unreachable")
	assert.Contains(t, testPointStatus(core.ProbeOutcome{Name: "A"}), "not listed")
}
