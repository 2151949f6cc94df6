// Package binance streams depth snapshots from the Binance partial
// depth websocket stream and normalizes them into model.ExchangeSnapshot.
package binance

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
const Venue = "binance"

// supportedDepths lists the partial-depth stream levels Binance serves.
// A request for any other depth is rounded up to the smallest of these
// that covers it, then the emitted levels are truncated back down to the
// originally requested depth.
var supportedDepths = []int{5, 10, 20}

// connectionAgeLimit is the maximum lifetime Binance honors for a single
// stream connection before it force-closes the socket; adapters must
// proactively reconnect before that happens.
const connectionAgeLimit = 24 * time.Hour

// reconnectMargin is subtracted from connectionAgeLimit to decide when to
// proactively cycle the connection, leaving headroom before Binance's
// own forced close.
const reconnectMargin = 60 * time.Second

// Config controls the Binance adapter.
type Config struct {
	BaseURL string // host[:port]/ws, no scheme
	Symbol  string
	Depth   int
}

// Adapter streams normalized snapshots for a single symbol from Binance.
type Adapter struct {
	cfg Config
	log logger.LoggerInterface
	rl  *ratelimit.Limiter
	cb  *circuitbreaker.CircuitBreaker[struct{}]

	serverDepth int
	depth       int
	url         string

	out chan model.ExchangeSnapshot
}

// New builds an Adapter. cfg.Depth is rounded up to the smallest
// Binance-supported subscription depth, but levels are emitted truncated
// back down to cfg.Depth (0 if cfg.Depth is non-positive), never to the
// wider server-side granularity.
func New(cfg Config, log logger.LoggerInterface) *Adapter {
	serverDepth := resolveServerDepth(cfg.Depth)
	url := fmt.Sprintf("wss://%s/%s@depth%d@100ms", cfg.BaseURL, cfg.Symbol, serverDepth)

	depth := cfg.Depth
	if depth <= 0 {
		depth = 0
	} else if depth > serverDepth {
		log.Warn(context.Background(), "requested depth exceeds binance maximum, clamping",
			"requested", cfg.Depth, "server_depth", serverDepth)
		depth = serverDepth
	}

	return &Adapter{
		cfg:         cfg,
		log:         log,
		rl:          ratelimit.New(30),
		cb:          circuitbreaker.New[struct{}](circuitbreaker.Config{Name: "binance-ws", MaxConsecutiveFails: 5, OpenTimeout: 30 * time.Second, HalfOpenMaxRequests: 1}),
		serverDepth: serverDepth,
		depth:       depth,
		url:         url,
		out:         make(chan model.ExchangeSnapshot, 8),
	}
}

// resolveServerDepth picks the smallest Binance-supported depth covering
// requested, or the largest supported depth if requested exceeds it.
func resolveServerDepth(requested int) int {
	if requested <= 0 {
		return supportedDepths[0]
	}
	for _, d := range supportedDepths {
		if requested <= d {
			return d
		}
	}
	return supportedDepths[len(supportedDepths)-1]
}

// Snapshots returns the channel of normalized snapshots. Run must be
// started for the channel to receive values.
func (a *Adapter) Snapshots() <-chan model.ExchangeSnapshot {
	return a.out
}

// Run connects to Binance and streams snapshots until ctx is canceled,
// proactively cycling the connection before Binance's age limit and
// reconnecting with backoff through the shared wsconn client on any
// error or unexpected close.
func (a *Adapter) Run(ctx context.Context) error {
	wcfg := wsconn.DefaultConfig(a.url, "binance-"+a.cfg.Symbol)
	client, err := wsconn.New(wcfg)
	if err != nil {
		return apperror.Internal(apperror.CodeInternalError, "failed to build binance ws client", err)
	}

	client.OnMessage(func(ctx context.Context, raw []byte) {
		snap, err := a.parse(raw)
		if err != nil {
			a.log.Warn(ctx, "dropping unparseable binance frame", "error", err)
			return
		}
		select {
		case a.out <- snap:
		case <-ctx.Done():
		}
	})

	if err := a.rl.Wait(ctx); err != nil {
		return err
	}
	if _, err := a.cb.Execute(func() (struct{}, error) {
		return struct{}{}, client.ConnectWithRetry(ctx)
	}); err != nil {
		return apperror.External(apperror.CodeBinanceConnectionFailed, "binance connect failed", err)
	}
	defer client.Close()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Since(client.ConnectedAt()) >= connectionAgeLimit-reconnectMargin {
				a.log.Info(ctx, "cycling binance connection before age limit", "symbol", a.cfg.Symbol)
				client.Close()
				if err := client.ConnectWithRetry(ctx); err != nil {
					return apperror.External(apperror.CodeBinanceConnectionFailed, "binance reconnect failed", err)
				}
			}
		}
	}
}

// depthMessage mirrors Binance's partial-depth stream payload: a pair of
// [price, quantity] string tuples per side.
type depthMessage struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

// errorMessage mirrors the error frame Binance sends instead of a depth
// update when the subscription itself fails.
type errorMessage struct {
	Error *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
}

func (a *Adapter) parse(raw []byte) (model.ExchangeSnapshot, error) {
	var em errorMessage
	if err := json.Unmarshal(raw, &em); err == nil && em.Error != nil {
		return model.ExchangeSnapshot{}, apperror.New(apperror.CodeBinanceAPIError,
			apperror.WithContext(fmt.Sprintf("binance error %d: %s", em.Error.Code, em.Error.Msg)))
	}

	var dm depthMessage
	if err := json.Unmarshal(raw, &dm); err != nil {
		return model.ExchangeSnapshot{}, apperror.Wrap(err, apperror.CodeBinanceParseFailed, "invalid binance depth frame")
	}

	bids, err := parseLevels(dm.Bids, a.depth)
	if err != nil {
		return model.ExchangeSnapshot{}, apperror.Wrap(err, apperror.CodeBinanceParseFailed, "invalid binance bid level")
	}
	asks, err := parseLevels(dm.Asks, a.depth)
	if err != nil {
		return model.ExchangeSnapshot{}, apperror.Wrap(err, apperror.CodeBinanceParseFailed, "invalid binance ask level")
	}

	return model.ExchangeSnapshot{
		Venue:       Venue,
		Bids:        bids,
		Asks:        asks,
		TimestampMS: time.Now().UnixMilli(),
	}, nil
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
