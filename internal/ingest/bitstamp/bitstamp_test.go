package bitstamp

import (
	"testing"

	"github.com/torcoste/orderbook-aggregator/internal/logger"
)

func TestNewClampsDepth(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		want  int
	}{
		{"zero falls back to limit", 0, depthLimit},
		{"negative falls back to limit", -5, depthLimit},
		{"within limit kept as-is", 50, 50},
		{"above limit clamped", 500, depthLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(Config{URL: "wss://ws.bitstamp.net", Symbol: "ethbtc", Depth: tt.depth}, logger.Discard())
			if a.depth != tt.want {
				t.Errorf("depth = %d, want %d", a.depth, tt.want)
			}
		})
	}
}

func TestSubscribeFrame(t *testing.T) {
	f := newSubscribeFrame("ethbtc")
	if f.Event != "bts:subscribe" {
		t.Fatalf("event = %q, want bts:subscribe", f.Event)
	}
	if f.Data.Channel != "order_book_ethbtc" {
		t.Fatalf("channel = %q, want order_book_ethbtc", f.Data.Channel)
	}
}

func TestParseDataEvent(t *testing.T) {
	a := New(Config{URL: "wss://ws.bitstamp.net", Symbol: "ethbtc", Depth: 10}, logger.Discard())

	raw := []byte(`{"event":"data","channel":"order_book_ethbtc","data":{"timestamp":"1700000000","bids":[["100.5","1.2"]],"asks":[["100.6","0.8"]]}}`)
	snap, reconnect, err := a.parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if reconnect {
		t.Fatal("data event should not request reconnect")
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if snap.Venue != Venue {
		t.Fatalf("venue = %q, want %q", snap.Venue, Venue)
	}
	if snap.TimestampMS != 1700000000*1000 {
		t.Fatalf("timestampMS = %d, want %d", snap.TimestampMS, 1700000000*1000)
	}
	if len(snap.Bids) != 1 || snap.Bids[0].Price != 100.5 {
		t.Fatalf("unexpected bids: %+v", snap.Bids)
	}
}

func TestParseReconnectRequest(t *testing.T) {
	a := New(Config{URL: "wss://ws.bitstamp.net", Symbol: "ethbtc", Depth: 10}, logger.Discard())

	raw := []byte(`{"event":"bts:request_reconnect","channel":"","data":{}}`)
	snap, reconnect, err := a.parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reconnect {
		t.Fatal("expected a reconnect request")
	}
	if snap != nil {
		t.Fatal("reconnect request should carry no snapshot")
	}
}

func TestParseErrorEvent(t *testing.T) {
	a := New(Config{URL: "wss://ws.bitstamp.net", Symbol: "ethbtc", Depth: 10}, logger.Discard())

	raw := []byte(`{"event":"bts:error","channel":"","data":{}}`)
	if _, _, err := a.parse(raw); err == nil {
		t.Fatal("expected an error for a bts:error event")
	}
}

func TestParseDepthClamp(t *testing.T) {
	a := New(Config{URL: "wss://ws.bitstamp.net", Symbol: "ethbtc", Depth: 1}, logger.Discard())

	raw := []byte(`{"event":"data","channel":"order_book_ethbtc","data":{"timestamp":"1","bids":[["3","1"],["2","1"],["1","1"]],"asks":[["4","1"],["5","1"]]}}`)
	snap, _, err := a.parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Fatalf("expected clamping to depth=1, got bids=%d asks=%d", len(snap.Bids), len(snap.Asks))
	}
}
