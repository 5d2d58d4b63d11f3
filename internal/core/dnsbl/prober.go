package dnsbl

import (
	"context"
	"net/netip"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iplens/iplens/internal/core"
	"github.com/iplens/iplens/internal/metrics"
	"github.com/iplens/iplens/internal/observability"
)

// DefaultTimeout bounds a single list query.
const DefaultTimeout = 5 * time.Second

// Probe outcome labels used in logs and metrics.
const (
	OutcomeListed = "listed"
	OutcomeClean  = "clean"
	OutcomeError  = "error"
)

// Prober queries one list for one encoded address.
type Prober struct {
	Resolver Resolver
	Timeout  time.Duration
	// Pacer, when set, caps the rate of outbound queries across all probes.
	Pacer *rate.Limiter
}

type lookupAnswer struct {
	addrs []netip.Addr
	err   error
}

// Probe looks up {reversed}.{list.Host} and classifies the answer. It never
// fails: timeouts and resolver errors are reported through Error.
func (p *Prober) Probe(ctx context.Context, reversed string, list core.BlacklistDefinition) core.ProbeOutcome {
	if ctx == nil {
		ctx = context.Background()
	}
	outcome := core.ProbeOutcome{Name: list.Name, Description: list.Description}
	query := reversed + "." + list.Host
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	var err error
	if p.Pacer != nil {
		err = p.Pacer.Wait(ctx)
	}

	var answer lookupAnswer
	if err == nil {
		answer = p.lookup(ctx, query)
		err = answer.err
	}

	label := OutcomeError
	switch {
	case err == nil && len(answer.addrs) > 0:
		outcome.Listed = true
		outcome.Codes = returnCodes(answer.addrs)
		label = OutcomeListed
	case err == nil || IsNotFound(err):
		label = OutcomeClean
	default:
		outcome.Error = true
	}

	elapsed := time.Since(start)
	metrics.RecordProbe(list.Name, label, elapsed)
	if observability.ServerLogger != nil {
		fields := []zap.Field{
			zap.String("list", list.Name),
			zap.String("query", query),
			zap.String("outcome", label),
			zap.Duration("duration", elapsed),
		}
		if outcome.Error {
			observability.ServerLogger.Warn("DNSBL probe indeterminate", append(fields, zap.Error(err))...)
		} else {
			observability.ServerLogger.Debug("DNSBL probe completed", fields...)
		}
	}

	return outcome
}

// lookup races the resolver against the probe deadline. A late answer lands in
// the buffered channel and is dropped.
func (p *Prober) lookup(ctx context.Context, query string) lookupAnswer {
	results := make(chan lookupAnswer, 1)
	resolver := p.resolver()
	go func() {
		addrs, err := resolver.LookupA(ctx, query)
		results <- lookupAnswer{addrs: addrs, err: err}
	}()

	select {
	case <-ctx.Done():
		return lookupAnswer{err: ctx.Err()}
	case answer := <-results:
		return answer
	}
}

func (p *Prober) timeout() time.Duration {
	if p == nil || p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

func (p *Prober) resolver() Resolver {
	if p == nil || p.Resolver == nil {
		return &SystemResolver{}
	}
	return p.Resolver
}

func returnCodes(addrs []netip.Addr) []string {
	codes := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		codes = append(codes, addr.String())
	}
	return codes
}
