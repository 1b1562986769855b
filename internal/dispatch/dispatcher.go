// Package dispatch fans one notification out to every registered adapter
// concurrently and collects a per-adapter result. One adapter's failure —
// including a panic — never aborts the batch.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/plandeck/nudge/internal/adapter"
	"github.com/plandeck/nudge/internal/event"
	"github.com/plandeck/nudge/internal/metrics"
	"github.com/plandeck/nudge/internal/storage"
)

// NotificationsChannel is the channel-bus channel that mirrors every
// dispatched notification, regardless of adapter outcome.
const NotificationsChannel = "notifications"

// Mirror is the subset of the channel bus the dispatcher needs.
type Mirror interface {
	Publish(channel string, data any)
}

// Dispatcher delivers notifications to the registry's adapter set.
// The bus and store are optional; a nil value disables that side effect.
type Dispatcher struct {
	registry *adapter.Registry
	bus      Mirror
	store    storage.DeliveryStore
	logger   *slog.Logger
}

// New creates a Dispatcher.
func New(registry *adapter.Registry, bus Mirror, store storage.DeliveryStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, bus: bus, store: store, logger: logger}
}

// DeliverToAll invokes every registered adapter concurrently and returns one
// result per adapter, in registration order. A panicking adapter yields a
// failure result instead of propagating. No retry happens here; retry policy
// belongs to the adapter wrappers and the redelivery sweeper.
func (d *Dispatcher) DeliverToAll(ctx context.Context, ev *event.Notification) []adapter.Result {
	adapters := d.registry.Adapters()
	results := make([]adapter.Result, len(adapters))

	var wg sync.WaitGroup
	for i, a := range adapters {
		wg.Add(1)
		go func(i int, a adapter.Adapter) {
			defer wg.Done()
			results[i] = d.deliverOne(ctx, a, ev)
		}(i, a)
	}
	wg.Wait()

	d.mirror(ev)
	d.record(ev, results)

	return results
}

// deliverOne runs a single adapter with panic recovery and instrumentation.
func (d *Dispatcher) deliverOne(ctx context.Context, a adapter.Adapter, ev *event.Notification) (res adapter.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("adapter panicked",
				"adapter", a.Name(), "event", ev.EventType, "panic", fmt.Sprint(r))
			res = adapter.Result{Adapter: a.Name(), Success: false, Reason: fmt.Sprintf("adapter panic: %v", r)}
		}
	}()

	start := time.Now()
	res = a.Deliver(ctx, ev)
	metrics.DeliveryDuration.WithLabelValues(a.Name()).Observe(time.Since(start).Seconds())

	status := "failure"
	if res.Success {
		status = "success"
	} else {
		d.logger.Warn("delivery failed",
			"adapter", a.Name(), "event", ev.EventType,
			"reason", res.Reason, "status_code", res.StatusCode)
	}
	metrics.DeliveriesTotal.WithLabelValues(a.Name(), status).Inc()
	return res
}

// mirror publishes the event to the notifications channel. Best-effort by
// contract: the bus's Publish cannot fail and does not block.
func (d *Dispatcher) mirror(ev *event.Notification) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(NotificationsChannel, ev)
}

// record writes one delivery-log row per adapter result, best-effort.
func (d *Dispatcher) record(ev *event.Notification, results []adapter.Result) {
	if d.store == nil {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		payload = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, res := range results {
		entry := storage.DeliveryEntry{
			CorrelationID: ev.CorrelationID,
			EventType:     ev.EventType,
			Adapter:       res.Adapter,
			Success:       res.Success,
			Reason:        res.Reason,
			StatusCode:    res.StatusCode,
			Attempts:      1,
			Payload:       payload,
		}
		if err := d.store.RecordDelivery(ctx, entry); err != nil {
			d.logger.Warn("recording delivery failed",
				"adapter", res.Adapter, "event", ev.EventType, "error", err)
		}
	}
}
