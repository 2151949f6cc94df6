// Package bitstamp streams order book snapshots from Bitstamp's
// WebSocket API and normalizes them into model.ExchangeSnapshot.
package bitstamp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/torcoste/orderbook-aggregator/internal/apperror"
	"github.com/torcoste/orderbook-aggregator/internal/circuitbreaker"
	"github.com/torcoste/orderbook-aggregator/internal/logger"
	"github.com/torcoste/orderbook-aggregator/internal/model"
	"github.com/torcoste/orderbook-aggregator/internal/ratelimit"
	"github.com/torcoste/orderbook-aggregator/internal/wsconn"
)

// Venue is the identifier this adapter tags every snapshot with.
const Venue = "bitstamp"

// depthLimit is the number of levels Bitstamp's live order_book channel
// carries per side; requests deeper than this are silently clamped.
const depthLimit = 100

// connectionAgeLimit is Bitstamp's stated maximum connection lifetime;
// adapters reconnect proactively before hitting it.
const connectionAgeLimit = 90 * 24 * time.Hour

const reconnectMargin = 60 * time.Second

// Config controls the Bitstamp adapter.
type Config struct {
	URL    string // wss://ws.bitstamp.net
	Symbol string
	Depth  int
}

// Adapter streams normalized snapshots for a single symbol from Bitstamp.
type Adapter struct {
	cfg Config
	log logger.LoggerInterface
	rl  *ratelimit.Limiter
	cb  *circuitbreaker.CircuitBreaker[struct{}]

	depth int
	out   chan model.ExchangeSnapshot
}

// New builds an Adapter. cfg.Depth is clamped to depthLimit.
func New(cfg Config, log logger.LoggerInterface) *Adapter {
	depth := cfg.Depth
	if depth <= 0 || depth > depthLimit {
		depth = depthLimit
	}
	return &Adapter{
		cfg:   cfg,
		log:   log,
		rl:    ratelimit.New(30),
		cb:    circuitbreaker.New[struct{}](circuitbreaker.Config{Name: "bitstamp-ws", MaxConsecutiveFails: 5, OpenTimeout: 30 * time.Second, HalfOpenMaxRequests: 1}),
		depth: depth,
		out:   make(chan model.ExchangeSnapshot, 8),
	}
}

// Snapshots returns the channel of normalized snapshots.
func (a *Adapter) Snapshots() <-chan model.ExchangeSnapshot {
	return a.out
}

// subscribeFrame is the bts:subscribe control message sent right after
// the socket opens, naming the live order book channel for the symbol.
type subscribeFrame struct {
	Event string `json:"event"`
	Data  struct {
		Channel string `json:"channel"`
	} `json:"data"`
}

func newSubscribeFrame(symbol string) subscribeFrame {
	var f subscribeFrame
	f.Event = "bts:subscribe"
	f.Data.Channel = "order_book_" + symbol
	return f
}

// Run connects to Bitstamp, subscribes to the symbol's order book
// channel, and streams snapshots until ctx is canceled. A
// bts:request_reconnect control event, or reaching the connection age
// limit, makes Run close the connection, reconnect and resubscribe.
func (a *Adapter) Run(ctx context.Context) error {
	wcfg := wsconn.DefaultConfig(a.cfg.URL, "bitstamp-"+a.cfg.Symbol)
	client, err := wsconn.New(wcfg)
	if err != nil {
		return apperror.Internal(apperror.CodeInternalError, "failed to build bitstamp ws client", err)
	}

	reconnectRequested := make(chan struct{}, 1)

	client.OnMessage(func(ctx context.Context, raw []byte) {
		snap, requestReconnect, err := a.parse(raw)
		if err != nil {
			a.log.Warn(ctx, "dropping unparseable bitstamp frame", "error", err)
			return
		}
		if requestReconnect {
			select {
			case reconnectRequested <- struct{}{}:
			default:
			}
			return
		}
		if snap == nil {
			return
		}
		select {
		case a.out <- *snap:
		case <-ctx.Done():
		}
	})

	if err := a.rl.Wait(ctx); err != nil {
		return err
	}
	if _, err := a.cb.Execute(func() (struct{}, error) {
		return struct{}{}, client.ConnectWithRetry(ctx)
	}); err != nil {
		return apperror.External(apperror.CodeBitstampConnectionFailed, "bitstamp connect failed", err)
	}
	defer client.Close()

	if err := client.SendJSON(ctx, newSubscribeFrame(a.cfg.Symbol)); err != nil {
		return apperror.External(apperror.CodeBitstampConnectionFailed, "bitstamp subscribe failed", err)
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconnectRequested:
			a.log.Info(ctx, "bitstamp requested reconnect", "symbol", a.cfg.Symbol)
			if err := a.cycle(ctx, client); err != nil {
				return err
			}
		case <-ticker.C:
			if time.Since(client.ConnectedAt()) >= connectionAgeLimit-reconnectMargin {
				a.log.Info(ctx, "cycling bitstamp connection before age limit", "symbol", a.cfg.Symbol)
				if err := a.cycle(ctx, client); err != nil {
					return err
				}
			}
		}
	}
}

func (a *Adapter) cycle(ctx context.Context, client *wsconn.Client) error {
	client.Close()
	if err := client.ConnectWithRetry(ctx); err != nil {
		return apperror.External(apperror.CodeBitstampConnectionFailed, "bitstamp reconnect failed", err)
	}
	return client.SendJSON(ctx, newSubscribeFrame(a.cfg.Symbol))
}

// dataEvent mirrors Bitstamp's "data" event payload.
type dataEvent struct {
	Event string `json:"event"`
	Data  struct {
		Timestamp string      `json:"timestamp"`
		Bids      [][2]string `json:"bids"`
		Asks      [][2]string `json:"asks"`
	} `json:"data"`
}

// controlEvent mirrors bts:request_reconnect / bts:error frames, which
// carry no order book payload.
type controlEvent struct {
	Event string `json:"event"`
}

// parse returns (snapshot, requestReconnect, error). snapshot is nil for
// control frames that carry no book data.
func (a *Adapter) parse(raw []byte) (*model.ExchangeSnapshot, bool, error) {
	var ce controlEvent
	if err := json.Unmarshal(raw, &ce); err == nil {
		switch ce.Event {
		case "bts:request_reconnect":
			return nil, true, nil
		case "bts:error":
			return nil, false, apperror.New(apperror.CodeBitstampAPIError, apperror.WithContext("bitstamp sent bts:error"))
		case "bts:subscription_succeeded":
			return nil, false, nil
		}
	}

	var de dataEvent
	if err := json.Unmarshal(raw, &de); err != nil {
		return nil, false, apperror.Wrap(err, apperror.CodeBitstampParseFailed, "invalid bitstamp data event")
	}
	if de.Event != "data" {
		return nil, false, nil
	}

	bids, err := parseLevels(de.Data.Bids, a.depth)
	if err != nil {
		return nil, false, apperror.Wrap(err, apperror.CodeBitstampParseFailed, "invalid bitstamp bid level")
	}
	asks, err := parseLevels(de.Data.Asks, a.depth)
	if err != nil {
		return nil, false, apperror.Wrap(err, apperror.CodeBitstampParseFailed, "invalid bitstamp ask level")
	}

	tsSeconds, err := strconv.ParseInt(de.Data.Timestamp, 10, 64)
	if err != nil {
		return nil, false, apperror.Wrap(err, apperror.CodeBitstampParseFailed, "invalid bitstamp timestamp")
	}

	return &model.ExchangeSnapshot{
		Venue:       Venue,
		Bids:        bids,
		Asks:        asks,
		TimestampMS: tsSeconds * 1000,
	}, false, nil
}

func parseLevels(raw [][2]string, limit int) ([]model.PriceLevel, error) {
	n := len(raw)
	if n > limit {
		n = limit
	}
	out := make([]model.PriceLevel, 0, n)
	for i := 0; i < n; i++ {
		price, err := strconv.ParseFloat(raw[i][0], 64)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", raw[i][0], err)
		}
		amount, err := strconv.ParseFloat(raw[i][1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", raw[i][1], err)
		}
		out = append(out, model.PriceLevel{Price: price, Amount: amount})
	}
	return out, nil
}
