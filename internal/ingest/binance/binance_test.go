package binance

import (
	"testing"

	"github.com/torcoste/orderbook-aggregator/internal/logger"
)

func TestResolveServerDepth(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{0, 5},
		{1, 5},
		{5, 5},
		{6, 10},
		{10, 10},
		{15, 20},
		{20, 20},
		{50, 20},
	}
	for _, tt := range tests {
		if got := resolveServerDepth(tt.requested); got != tt.want {
			t.Errorf("resolveServerDepth(%d) = %d, want %d", tt.requested, got, tt.want)
		}
	}
}

func TestNewBuildsStreamURL(t *testing.T) {
	a := New(Config{BaseURL: "stream.binance.com:9443/ws", Symbol: "ethbtc", Depth: 20}, logger.Discard())
	want := "wss://stream.binance.com:9443/ws/ethbtc@depth20@100ms"
	if a.url != want {
		t.Fatalf("url = %q, want %q", a.url, want)
	}
}

func TestParseDepthFrame(t *testing.T) {
	a := New(Config{BaseURL: "stream.binance.com:9443/ws", Symbol: "ethbtc", Depth: 5}, logger.Discard())

	raw := []byte(`{"bids":[["100.5","1.2"],["100.4","2.0"]],"asks":[["100.6","0.5"]]}`)
	snap, err := a.parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if snap.Venue != Venue {
		t.Fatalf("venue = %q, want %q", snap.Venue, Venue)
	}
	if len(snap.Bids) != 2 || snap.Bids[0].Price != 100.5 || snap.Bids[0].Amount != 1.2 {
		t.Fatalf("unexpected bids: %+v", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 100.6 {
		t.Fatalf("unexpected asks: %+v", snap.Asks)
	}
}

func TestParseDepthFrameTruncatesToRequestedDepth(t *testing.T) {
	a := New(Config{BaseURL: "stream.binance.com:9443/ws", Symbol: "ethbtc", Depth: 3}, logger.Discard())
	if a.serverDepth != 5 {
		t.Fatalf("serverDepth = %d, want 5", a.serverDepth)
	}
	if a.depth != 3 {
		t.Fatalf("depth = %d, want 3", a.depth)
	}

	raw := []byte(`{"bids":[["1","1"],["2","1"],["3","1"],["4","1"],["5","1"],["6","1"]],"asks":[]}`)
	snap, err := a.parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(snap.Bids) != 3 {
		t.Fatalf("expected truncation to the requested depth=3 (not serverDepth=5), got %d bids", len(snap.Bids))
	}
}

func TestParseDepthFrameZeroDepthEmitsNoLevels(t *testing.T) {
	a := New(Config{BaseURL: "stream.binance.com:9443/ws", Symbol: "ethbtc", Depth: 0}, logger.Discard())
	if a.depth != 0 {
		t.Fatalf("depth = %d, want 0", a.depth)
	}

	raw := []byte(`{"bids":[["1","1"],["2","1"]],"asks":[["3","1"]]}`)
	snap, err := a.parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Fatalf("expected depth=0 to emit no levels, got bids=%d asks=%d", len(snap.Bids), len(snap.Asks))
	}
}

func TestParseErrorFrame(t *testing.T) {
	a := New(Config{BaseURL: "stream.binance.com:9443/ws", Symbol: "ethbtc", Depth: 5}, logger.Discard())

	raw := []byte(`{"error":{"code":-1121,"msg":"Invalid symbol."}}`)
	if _, err := a.parse(raw); err == nil {
		t.Fatal("expected an error for an error frame")
	}
}

func TestParseMalformedPriceIsRejected(t *testing.T) {
	a := New(Config{BaseURL: "stream.binance.com:9443/ws", Symbol: "ethbtc", Depth: 5}, logger.Discard())

	raw := []byte(`{"bids":[["not-a-number","1"]],"asks":[]}`)
	if _, err := a.parse(raw); err == nil {
		t.Fatal("expected an error for an unparseable price")
	}
}
