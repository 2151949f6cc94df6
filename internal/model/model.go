// Package model holds the value types that flow through the ingest,
// aggregate, and fan-out stages of the pipeline.
package model

import "math"

// PriceLevel is a single (price, amount) pair quoted by a venue. Both
// fields must be non-negative finite reals; a PriceLevel with amount == 0
// must never be constructed.
type PriceLevel struct {
	Price  float64
	Amount float64
}

// Valid reports whether p is usable: finite, strictly positive price,
// strictly positive amount.
func (p PriceLevel) Valid() bool {
	return !math.IsNaN(p.Price) && !math.IsInf(p.Price, 0) && p.Price > 0 &&
		!math.IsNaN(p.Amount) && !math.IsInf(p.Amount, 0) && p.Amount > 0
}

// ExchangeSnapshot is the normalized per-venue message produced by an
// ingester. Bids are sorted descending by price (best bid first); asks
// are sorted ascending by price (best ask first). Both are truncated to
// at most the configured depth before being emitted.
type ExchangeSnapshot struct {
	Venue       string
	Bids        []PriceLevel
	Asks        []PriceLevel
	TimestampMS int64
}

// Level is a single merged output entry, tagging a PriceLevel with the
// venue it came from.
type Level struct {
	Venue  string
	Price  float64
	Amount float64
}

// Summary is the fan-out payload: a bounded, depth-truncated merge of all
// venues' current books, plus the resulting top-of-book spread.
type Summary struct {
	Spread float64
	Bids   []Level
	Asks   []Level
}

// Clone returns a deep copy of s so concurrent subscribers never share
// backing arrays with the aggregator or with each other.
func (s Summary) Clone() Summary {
	out := Summary{Spread: s.Spread}
	if s.Bids != nil {
		out.Bids = append([]Level(nil), s.Bids...)
	}
	if s.Asks != nil {
		out.Asks = append([]Level(nil), s.Asks...)
	}
	return out
}
