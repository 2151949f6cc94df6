// Package aggregator merges per-venue order book snapshots into a single
// depth-limited Summary and republishes it whenever a fresher merge is
// available.
package aggregator

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/torcoste/orderbook-aggregator/internal/logger"
	"github.com/torcoste/orderbook-aggregator/internal/model"
)

const (
	tracerName = "github.com/torcoste/orderbook-aggregator/internal/aggregator"
	meterName  = "github.com/torcoste/orderbook-aggregator/internal/aggregator"
)

// Config controls merge behavior.
type Config struct {
	Depth          int
	DataLifetimeMS int64
}

// Aggregator consumes snapshots from its ingest channel, merges the
// latest known snapshot per venue into a Summary, and emits that Summary
// on Out after every ingest batch that yields one.
type Aggregator struct {
	cfg Config
	log logger.LoggerInterface

	in  chan model.ExchangeSnapshot
	out chan model.Summary

	tracer trace.Tracer

	summariesEmitted metric.Int64Counter
	summariesSkipped metric.Int64Counter
	venuesStale      metric.Int64Counter
	mergeLatency     metric.Float64Histogram
}

// New builds an Aggregator. Feed it snapshots via Ingest and start the
// merge loop with Run; read merged summaries from Out.
func New(cfg Config, log logger.LoggerInterface) *Aggregator {
	a := &Aggregator{
		cfg:    cfg,
		log:    log,
		in:     make(chan model.ExchangeSnapshot, 8),
		out:    make(chan model.Summary, 10),
		tracer: otel.Tracer(tracerName),
	}
	meter := otel.Meter(meterName)
	a.summariesEmitted, _ = meter.Int64Counter("aggregator.summaries_emitted")
	a.summariesSkipped, _ = meter.Int64Counter("aggregator.summaries_skipped")
	a.venuesStale, _ = meter.Int64Counter("aggregator.venues_stale")
	a.mergeLatency, _ = meter.Float64Histogram("aggregator.merge_latency_ms")
	return a
}

// Ingest returns the channel venue adapters should forward snapshots to.
func (a *Aggregator) Ingest() chan<- model.ExchangeSnapshot {
	return a.in
}

// Out returns the channel of merged summaries.
func (a *Aggregator) Out() <-chan model.Summary {
	return a.out
}

// Run drains incoming snapshots, recomputing and publishing a merged
// summary after each batch, until ctx is canceled. A batch is one
// blocking receive followed by every snapshot already queued, so a burst
// of near-simultaneous venue updates collapses into a single summary.
func (a *Aggregator) Run(ctx context.Context) error {
	byVenue := make(map[string]model.ExchangeSnapshot)

	for {
		var snap model.ExchangeSnapshot
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap = <-a.in:
		}

		byVenue[snap.Venue] = snap

	drain:
		for {
			select {
			case s := <-a.in:
				byVenue[s.Venue] = s
			default:
				break drain
			}
		}

		a.publish(ctx, byVenue)
	}
}

func (a *Aggregator) publish(ctx context.Context, byVenue map[string]model.ExchangeSnapshot) {
	ctx, span := a.tracer.Start(ctx, "aggregator.compute_summary")
	defer span.End()

	start := time.Now()
	summary, ok := a.computeSummary(byVenue)
	a.mergeLatency.Record(ctx, float64(time.Since(start).Microseconds())/1000)

	if !ok {
		a.summariesSkipped.Add(ctx, 1)
		return
	}

	select {
	case a.out <- summary:
		a.summariesEmitted.Add(ctx, 1)
	case <-ctx.Done():
	}
}

// computeSummary merges every fresh venue snapshot in byVenue into a
// single depth-limited Summary. Freshness is judged against each
// snapshot's own TimestampMS (the venue-reported or parse-time stamp),
// not when the aggregator happened to read it off the channel, so a
// venue that silently stops updating still ages out once its data is
// older than cfg.DataLifetimeMS. If either resulting side is empty,
// computeSummary returns ok=false: a spread is never reported without at
// least one level on each side.
func (a *Aggregator) computeSummary(byVenue map[string]model.ExchangeSnapshot) (model.Summary, bool) {
	nowMS := time.Now().UnixMilli()

	var bids, asks []model.Level
	for venue, snap := range byVenue {
		if nowMS-snap.TimestampMS > a.cfg.DataLifetimeMS {
			a.venuesStale.Add(context.Background(), 1)
			continue
		}
		for _, b := range snap.Bids {
			if !b.Valid() {
				continue
			}
			bids = append(bids, model.Level{Venue: venue, Price: b.Price, Amount: b.Amount})
		}
		for _, ask := range snap.Asks {
			if !ask.Valid() {
				continue
			}
			asks = append(asks, model.Level{Venue: venue, Price: ask.Price, Amount: ask.Amount})
		}
	}

	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Price != bids[j].Price {
			return bids[i].Price > bids[j].Price
		}
		return bids[i].Amount > bids[j].Amount
	})
	sort.SliceStable(asks, func(i, j int) bool {
		if asks[i].Price != asks[j].Price {
			return asks[i].Price < asks[j].Price
		}
		return asks[i].Amount > asks[j].Amount
	})

	if a.cfg.Depth > 0 {
		if len(bids) > a.cfg.Depth {
			bids = bids[:a.cfg.Depth]
		}
		if len(asks) > a.cfg.Depth {
			asks = asks[:a.cfg.Depth]
		}
	} else {
		bids = nil
		asks = nil
	}

	if len(bids) == 0 || len(asks) == 0 {
		return model.Summary{}, false
	}

	return model.Summary{
		Spread: asks[0].Price - bids[0].Price,
		Bids:   bids,
		Asks:   asks,
	}, true
}
