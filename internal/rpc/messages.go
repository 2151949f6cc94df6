// Package rpc implements the BookSummary server-streaming RPC described
// in api/proto/orderbook.proto. Message types are plain JSON-tagged
// structs carried over a custom gRPC codec rather than generated
// protobuf bindings, since no protoc toolchain runs in this build.
package rpc

import "github.com/torcoste/orderbook-aggregator/internal/model"

// Empty is the BookSummary request message; the symbol is fixed at
// server startup, so the call takes no parameters.
type Empty struct{}

// Level mirrors orderbook.Level.
type Level struct {
	Exchange string  `json:"exchange"`
	Price    float64 `json:"price"`
	Amount   float64 `json:"amount"`
}

// Summary mirrors orderbook.Summary, the message streamed to every
// BookSummary subscriber.
type Summary struct {
	Spread float64 `json:"spread"`
	Bids   []Level `json:"bids"`
	Asks   []Level `json:"asks"`
}

// fromModel converts an internal model.Summary into its wire form.
func fromModel(s model.Summary) *Summary {
	out := &Summary{Spread: s.Spread}
	if len(s.Bids) > 0 {
		out.Bids = make([]Level, len(s.Bids))
		for i, b := range s.Bids {
			out.Bids[i] = Level{Exchange: b.Venue, Price: b.Price, Amount: b.Amount}
		}
	}
	if len(s.Asks) > 0 {
		out.Asks = make([]Level, len(s.Asks))
		for i, a := range s.Asks {
			out.Asks[i] = Level{Exchange: a.Venue, Price: a.Price, Amount: a.Amount}
		}
	}
	return out
}
