package rpc

import (
	"testing"

	"github.com/torcoste/orderbook-aggregator/internal/model"
)

func TestFromModel(t *testing.T) {
	in := model.Summary{
		Spread: 0.5,
		Bids:   []model.Level{{Venue: "binance", Price: 100, Amount: 1}},
		Asks:   []model.Level{{Venue: "bitstamp", Price: 100.5, Amount: 2}},
	}

	out := fromModel(in)

	if out.Spread != 0.5 {
		t.Errorf("Spread = %v, want 0.5", out.Spread)
	}
	if len(out.Bids) != 1 || out.Bids[0].Exchange != "binance" || out.Bids[0].Price != 100 {
		t.Errorf("unexpected bids: %+v", out.Bids)
	}
	if len(out.Asks) != 1 || out.Asks[0].Exchange != "bitstamp" || out.Asks[0].Amount != 2 {
		t.Errorf("unexpected asks: %+v", out.Asks)
	}
}

func TestFromModelEmptySummary(t *testing.T) {
	out := fromModel(model.Summary{})
	if out.Bids != nil || out.Asks != nil {
		t.Errorf("expected nil slices for an empty summary, got bids=%v asks=%v", out.Bids, out.Asks)
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}

	want := &Summary{Spread: 1.25, Bids: []Level{{Exchange: "binance", Price: 10, Amount: 1}}}
	data, err := c.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got Summary
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Spread != want.Spread || len(got.Bids) != 1 || got.Bids[0].Price != 10 {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestJSONCodecName(t *testing.T) {
	if got := (jsonCodec{}).Name(); got != "proto" {
		t.Errorf("Name() = %q, want %q", got, "proto")
	}
}
