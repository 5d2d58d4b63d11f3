package dnsbl

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iplens/iplens/internal/core"
)

func TestCheckAllKeepsConfigurationOrder(t *testing.T) {
	// The first list answers last; order must not follow completion.
	resolver := &stubResolver{answers: map[string]stubAnswer{
		"4.3.2.1.bl.spamcop.net":         {delay: 60 * time.Millisecond, addrs: []netip.Addr{netip.MustParseAddr("127.0.0.2")}},
		"4.3.2.1.dnsbl.sorbs.net":        {delay: 30 * time.Millisecond},
		"4.3.2.1.b.barracudacentral.org": {addrs: []netip.Addr{netip.MustParseAddr("127.0.0.2")}},
	}}
	agg := NewAggregator(&Prober{Resolver: resolver, Timeout: time.Second})

	result, err := agg.CheckAll(context.Background(), "1.2.3.4", DefaultLists())
	require.NoError(t, err)

	names := make([]string, 0, len(result.Checks))
	for _, check := range result.Checks {
		names = append(names, check.Name)
	}
	assert.Equal(t, []string{"SpamCop", "SORBS", "Barracuda", "UCEPROTECT"}, names)
	assert.True(t, result.Checks[0].Listed)
	assert.False(t, result.Checks[1].Listed)
	assert.True(t, result.Checks[2].Listed)
	assert.False(t, result.Checks[3].Listed)
	assert.Equal(t, 2, result.ListedCount)
	assert.Equal(t, 4, result.Total)
}

func TestCheckAllToleratesPartialFailure(t *testing.T) {
	listed := []netip.Addr{netip.MustParseAddr("127.0.0.2")}
	resolver := &stubResolver{answers: map[string]stubAnswer{
		"4.3.2.1.bl.spamcop.net":         {addrs: listed},
		"4.3.2.1.dnsbl.sorbs.net":        {block: true},
		"4.3.2.1.b.barracudacentral.org": {addrs: listed},
		"4.3.2.1.dnsbl-1.uceprotect.net": {addrs: listed},
	}}
	agg := NewAggregator(&Prober{Resolver: resolver, Timeout: 30 * time.Millisecond})

	start := time.Now()
	result, err := agg.CheckAll(context.Background(), "1.2.3.4", DefaultLists())
	require.NoError(t, err)

	require.Len(t, result.Checks, 4)
	assert.Equal(t, 3, result.ListedCount)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 1, result.Errored())
	assert.Equal(t, core.ProbeOutcome{Name: "SORBS", Description: "Spam & open proxies", Error: true}, result.Checks[1])
	assert.Less(t, time.Since(start), time.Second)
}

func TestCheckAllAllClean(t *testing.T) {
	agg := NewAggregator(&Prober{Resolver: &stubResolver{}})

	result, err := agg.CheckAll(context.Background(), "1.2.3.4", DefaultLists())
	require.NoError(t, err)

	assert.Equal(t, 0, result.ListedCount)
	assert.Equal(t, 4, result.Total)
	for _, check := range result.Checks {
		assert.False(t, check.Listed, check.Name)
		assert.False(t, check.Error, check.Name)
	}
}

func TestCheckAllIPv6QueriesNibbleName(t *testing.T) {
	resolver := &stubResolver{}
	agg := NewAggregator(&Prober{Resolver: resolver})
	lists := []core.BlacklistDefinition{{Name: "V6", Host: "v6.example.org"}}

	_, err := agg.CheckAll(context.Background(), "2001:db8::1", lists)
	require.NoError(t, err)

	assert.Equal(t, []string{"1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.v6.example.org"}, resolver.Queries())
}

func TestCheckAllInvalidAddressSendsNoQueries(t *testing.T) {
	resolver := &stubResolver{}
	agg := NewAggregator(&Prober{Resolver: resolver})

	result, err := agg.CheckAll(context.Background(), "not-an-ip", DefaultLists())
	require.ErrorIs(t, err, ErrInvalidAddressFormat)
	assert.Nil(t, result)
	assert.Empty(t, resolver.Queries())
}
