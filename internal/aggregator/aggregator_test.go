package aggregator

import (
	"testing"
	"time"

	"github.com/torcoste/orderbook-aggregator/internal/logger"
	"github.com/torcoste/orderbook-aggregator/internal/model"
)

func newTestAggregator(depth int, lifetimeMS int64) *Aggregator {
	return New(Config{Depth: depth, DataLifetimeMS: lifetimeMS}, logger.Discard())
}

func entryNow(venue string, bids, asks []model.PriceLevel) model.ExchangeSnapshot {
	return model.ExchangeSnapshot{Venue: venue, Bids: bids, Asks: asks, TimestampMS: time.Now().UnixMilli()}
}

func TestComputeSummaryMergesAndSortsAcrossVenues(t *testing.T) {
	a := newTestAggregator(20, 2000)

	byVenue := map[string]model.ExchangeSnapshot{
		"binance": entryNow("binance",
			[]model.PriceLevel{{Price: 100, Amount: 1}, {Price: 99, Amount: 2}},
			[]model.PriceLevel{{Price: 101, Amount: 1}, {Price: 102, Amount: 2}},
		),
		"bitstamp": entryNow("bitstamp",
			[]model.PriceLevel{{Price: 100.5, Amount: 1}},
			[]model.PriceLevel{{Price: 100.9, Amount: 1}},
		),
	}

	summary, ok := a.computeSummary(byVenue)
	if !ok {
		t.Fatal("expected a summary")
	}

	if summary.Bids[0].Price != 100.5 || summary.Bids[0].Venue != "bitstamp" {
		t.Fatalf("best bid should be bitstamp@100.5, got %+v", summary.Bids[0])
	}
	if summary.Asks[0].Price != 100.9 || summary.Asks[0].Venue != "bitstamp" {
		t.Fatalf("best ask should be bitstamp@100.9, got %+v", summary.Asks[0])
	}

	wantSpread := summary.Asks[0].Price - summary.Bids[0].Price
	if summary.Spread != wantSpread {
		t.Fatalf("spread = %v, want %v", summary.Spread, wantSpread)
	}
}

func TestComputeSummaryTruncatesToDepth(t *testing.T) {
	a := newTestAggregator(2, 2000)

	byVenue := map[string]model.ExchangeSnapshot{
		"binance": entryNow("binance",
			[]model.PriceLevel{{Price: 100, Amount: 1}, {Price: 99, Amount: 1}, {Price: 98, Amount: 1}},
			[]model.PriceLevel{{Price: 101, Amount: 1}, {Price: 102, Amount: 1}, {Price: 103, Amount: 1}},
		),
	}

	summary, ok := a.computeSummary(byVenue)
	if !ok {
		t.Fatal("expected a summary")
	}
	if len(summary.Bids) != 2 || len(summary.Asks) != 2 {
		t.Fatalf("expected depth-2 truncation, got bids=%d asks=%d", len(summary.Bids), len(summary.Asks))
	}
}

func TestComputeSummaryExcludesStaleVenues(t *testing.T) {
	a := newTestAggregator(20, 100)

	stale := entryNow("binance", []model.PriceLevel{{Price: 100, Amount: 1}}, []model.PriceLevel{{Price: 101, Amount: 1}})
	stale.TimestampMS = time.Now().Add(-time.Second).UnixMilli()

	fresh := entryNow("bitstamp", []model.PriceLevel{{Price: 90, Amount: 1}}, []model.PriceLevel{{Price: 95, Amount: 1}})

	byVenue := map[string]model.ExchangeSnapshot{"binance": stale, "bitstamp": fresh}

	summary, ok := a.computeSummary(byVenue)
	if !ok {
		t.Fatal("expected a summary from the fresh venue alone")
	}
	if summary.Bids[0].Venue != "bitstamp" || summary.Asks[0].Venue != "bitstamp" {
		t.Fatalf("stale binance snapshot should have been excluded, got %+v", summary)
	}
}

func TestComputeSummaryWithholdsWhenOneSideEmpty(t *testing.T) {
	a := newTestAggregator(20, 2000)

	byVenue := map[string]model.ExchangeSnapshot{
		"binance": entryNow("binance", []model.PriceLevel{{Price: 100, Amount: 1}}, nil),
	}

	if _, ok := a.computeSummary(byVenue); ok {
		t.Fatal("expected no summary when one side has no levels")
	}
}

func TestComputeSummaryWithholdsWhenBothSidesEmpty(t *testing.T) {
	a := newTestAggregator(20, 2000)

	if _, ok := a.computeSummary(map[string]model.ExchangeSnapshot{}); ok {
		t.Fatal("expected no summary for an empty venue set")
	}
}

func TestComputeSummaryZeroDepthAlwaysWithholds(t *testing.T) {
	a := newTestAggregator(0, 2000)

	byVenue := map[string]model.ExchangeSnapshot{
		"binance": entryNow("binance", []model.PriceLevel{{Price: 100, Amount: 1}}, []model.PriceLevel{{Price: 101, Amount: 1}}),
	}

	if _, ok := a.computeSummary(byVenue); ok {
		t.Fatal("expected depth=0 to always withhold a summary")
	}
}

func TestComputeSummarySkipsInvalidLevels(t *testing.T) {
	a := newTestAggregator(20, 2000)

	byVenue := map[string]model.ExchangeSnapshot{
		"binance": entryNow("binance",
			[]model.PriceLevel{{Price: 0, Amount: 1}, {Price: 100, Amount: 1}},
			[]model.PriceLevel{{Price: 101, Amount: 0}, {Price: 102, Amount: 1}},
		),
	}

	summary, ok := a.computeSummary(byVenue)
	if !ok {
		t.Fatal("expected a summary once invalid levels are dropped")
	}
	if len(summary.Bids) != 1 || summary.Bids[0].Price != 100 {
		t.Fatalf("zero-price bid should have been dropped, got %+v", summary.Bids)
	}
	if len(summary.Asks) != 1 || summary.Asks[0].Price != 102 {
		t.Fatalf("zero-amount ask should have been dropped, got %+v", summary.Asks)
	}
}
