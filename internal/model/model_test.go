package model

import "testing"

func TestPriceLevelValid(t *testing.T) {
	tests := []struct {
		name string
		in   PriceLevel
		want bool
	}{
		{"positive price and amount", PriceLevel{Price: 1.5, Amount: 2.0}, true},
		{"zero price", PriceLevel{Price: 0, Amount: 2.0}, false},
		{"zero amount", PriceLevel{Price: 1.5, Amount: 0}, false},
		{"negative price", PriceLevel{Price: -1, Amount: 2.0}, false},
		{"negative amount", PriceLevel{Price: 1.5, Amount: -2.0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummaryCloneIsIndependent(t *testing.T) {
	orig := Summary{
		Spread: 1,
		Bids:   []Level{{Venue: "binance", Price: 10, Amount: 1}},
		Asks:   []Level{{Venue: "bitstamp", Price: 11, Amount: 1}},
	}

	clone := orig.Clone()
	clone.Bids[0].Price = 999

	if orig.Bids[0].Price == 999 {
		t.Fatal("mutating clone mutated the original backing array")
	}
}

func TestSummaryCloneNilSlices(t *testing.T) {
	clone := Summary{}.Clone()
	if clone.Bids != nil || clone.Asks != nil {
		t.Fatalf("cloning an empty summary should keep nil slices, got bids=%v asks=%v", clone.Bids, clone.Asks)
	}
}
