package dnsbl

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iplens/iplens/internal/core"
	"github.com/iplens/iplens/internal/metrics"
	"github.com/iplens/iplens/internal/observability"
)

// Aggregator fans one address out across every configured list.
type Aggregator struct {
	Prober *Prober
}

// NewAggregator creates an aggregator around prober.
func NewAggregator(prober *Prober) *Aggregator {
	return &Aggregator{Prober: prober}
}

// CheckAll encodes ip once and probes every list concurrently, waiting for all
// probes to settle. Outcomes keep the order of lists. Only an encoding failure
// is returned as an error, before any query is sent.
func (a *Aggregator) CheckAll(ctx context.Context, ip string, lists []core.BlacklistDefinition) (*core.AggregateResult, error) {
	reversed, err := EncodeForQuery(ip)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	prober := a.prober()
	checks := make([]core.ProbeOutcome, len(lists))

	// Probes never return errors, so the group settles every probe.
	var g errgroup.Group
	for i, list := range lists {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					checks[i] = core.ProbeOutcome{Name: list.Name, Description: list.Description, Error: true}
					metrics.RecordPanic()
					if observability.ServerLogger != nil {
						observability.ServerLogger.Error("DNSBL probe panicked",
							zap.String("list", list.Name),
							zap.String("panic", fmt.Sprint(r)))
					}
				}
			}()
			checks[i] = prober.Probe(ctx, reversed, list)
			return nil
		})
	}
	_ = g.Wait()

	result := &core.AggregateResult{Checks: checks, Total: len(lists)}
	for _, check := range checks {
		if check.Listed {
			result.ListedCount++
		}
	}

	metrics.RecordCheck(result.ListedCount, result.Errored())
	return result, nil
}

func (a *Aggregator) prober() *Prober {
	if a == nil || a.Prober == nil {
		return &Prober{}
	}
	return a.Prober
}
