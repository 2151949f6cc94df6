// Package fanout republishes aggregator summaries to any number of RPC
// subscribers, each through its own bounded channel.
package fanout

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/torcoste/orderbook-aggregator/internal/logger"
	"github.com/torcoste/orderbook-aggregator/internal/model"
)

const meterName = "github.com/torcoste/orderbook-aggregator/internal/fanout"

// subscriberBuffer is the capacity of each subscriber's private channel.
// A subscriber whose buffer is still full when the next summary arrives
// is evicted (its channel closed after the summary it already holds)
// rather than blocking the dispatcher.
const subscriberBuffer = 1

// Registry holds the set of live subscribers and dispatches summaries to
// all of them without letting a slow subscriber stall the others.
type Registry struct {
	log logger.LoggerInterface

	mu   sync.Mutex
	subs map[int]chan model.Summary
	next int

	subscriberCount metric.Int64UpDownCounter
	dispatched      metric.Int64Counter
	dropped         metric.Int64Counter
}

// New builds an empty Registry.
func New(log logger.LoggerInterface) *Registry {
	r := &Registry{log: log, subs: make(map[int]chan model.Summary)}
	meter := otel.Meter(meterName)
	r.subscriberCount, _ = meter.Int64UpDownCounter("fanout.subscribers")
	r.dispatched, _ = meter.Int64Counter("fanout.dispatched")
	r.dropped, _ = meter.Int64Counter("fanout.dropped")
	return r
}

// Subscription is a handle returned by Attach. Call Close when the
// subscriber disconnects to remove it from the registry.
type Subscription struct {
	id       int
	ch       chan model.Summary
	registry *Registry
}

// Recv returns the channel this subscription receives summaries on.
func (s *Subscription) Recv() <-chan model.Summary {
	return s.ch
}

// Close removes the subscription from its registry.
func (s *Subscription) Close() {
	s.registry.detach(s.id)
}

// Attach registers a new subscriber and returns its Subscription.
func (r *Registry) Attach() *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	ch := make(chan model.Summary, subscriberBuffer)
	r.subs[id] = ch

	r.subscriberCount.Add(context.Background(), 1)
	return &Subscription{id: id, ch: ch, registry: r}
}

func (r *Registry) detach(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[id]; ok {
		delete(r.subs, id)
		r.subscriberCount.Add(context.Background(), -1)
	}
}

// dispatchOne sends summary to every live subscriber without blocking: a
// subscriber whose channel is already full is evicted from the registry
// and its channel closed, rather than left registered with a stale
// buffered value it may never drain.
func (r *Registry) dispatchOne(summary model.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ch := range r.subs {
		select {
		case ch <- summary.Clone():
			r.dispatched.Add(context.Background(), 1)
		default:
			delete(r.subs, id)
			close(ch)
			r.subscriberCount.Add(context.Background(), -1)
			r.dropped.Add(context.Background(), 1)
		}
	}
}

// Run reads summaries from in and dispatches each to every live
// subscriber until ctx is canceled or in is closed.
func (r *Registry) Run(ctx context.Context, in <-chan model.Summary) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case summary, ok := <-in:
			if !ok {
				return nil
			}
			r.dispatchOne(summary)
		}
	}
}

// Count returns the current number of live subscribers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
