// Package channelbus provides a process-local publish/subscribe primitive
// layered on Postgres LISTEN/NOTIFY, so multiple service instances observe
// the same logical channel.
//
// Delivery is best-effort, at-most-once, with no retry: a notification
// published while the store connection is down is silently lost, and
// reconnection is the process supervisor's responsibility, not this
// package's.
package channelbus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Callback receives the raw payload published to a channel. Callbacks run on
// the bus's notification goroutine and must not call Subscribe or Close.
type Callback func(payload []byte)

// listener is the store-level notification primitive the bus sits on.
// Listen, Unlisten, and NextNotification are only ever called from the bus's
// run goroutine; Notify may be called from any goroutine.
type listener interface {
	Listen(ctx context.Context, channel string) error
	Unlisten(ctx context.Context, channel string) error
	Notify(ctx context.Context, channel, payload string) error
	NextNotification(ctx context.Context) (channel, payload string, err error)
	Close(ctx context.Context) error
}

// subscription is one registered callback. remove is idempotent.
type subscription struct {
	cb   Callback
	once sync.Once
}

// command asks the run goroutine to change the store-level listen set.
type command struct {
	listen  bool
	channel string
	reply   chan error
}

const (
	notifyTimeout = 5 * time.Second
	cmdTimeout    = 10 * time.Second
)

// Bus is a reference-counted LISTEN/NOTIFY bus. The zero value is unusable;
// callers must Init before subscribing, and Publish before Init is a no-op.
type Bus struct {
	logger *slog.Logger

	mu    sync.Mutex
	store listener
	subs  map[string][]*subscription
	wake  context.CancelFunc // cancels the in-flight NextNotification

	cmds   chan command
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// New creates an uninitialized Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[string][]*subscription),
		cmds:   make(chan command, 16),
	}
}

// Init connects to Postgres and starts the notification loop. It must be
// called at most once.
func (b *Bus) Init(ctx context.Context, connString string) error {
	store, err := dialPostgres(ctx, connString)
	if err != nil {
		return err
	}
	b.initWith(store)
	return nil
}

// initWith wires a store-level listener and starts the run goroutine.
// Split out from Init so tests can inject a fake listener.
func (b *Bus) initWith(store listener) {
	runCtx, cancel := context.WithCancel(context.Background())

	b.mu.Lock()
	b.store = store
	b.cancel = cancel
	b.done = make(chan struct{})
	b.mu.Unlock()

	go b.run(runCtx, store)
}

// Close stops the notification loop and releases the store connection.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed || b.store == nil {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	store := b.store
	cancel := b.cancel
	done := b.done
	if b.wake != nil {
		b.wake()
	}
	b.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return store.Close(ctx)
}

// Subscribe registers cb against channel and returns a function that removes
// only this callback. The first local subscriber for a channel opens a
// store-level LISTEN; the last unsubscribe releases it. Subscribing before
// Init is a no-op: the returned function does nothing.
func (b *Bus) Subscribe(channel string, cb Callback) (unsubscribe func()) {
	b.mu.Lock()
	if b.store == nil || b.closed {
		b.mu.Unlock()
		b.logger.Warn("channelbus: subscribe before init ignored", "channel", channel)
		return func() {}
	}

	sub := &subscription{cb: cb}
	first := len(b.subs[channel]) == 0
	b.subs[channel] = append(b.subs[channel], sub)
	b.mu.Unlock()

	if first {
		if err := b.exec(command{listen: true, channel: channel}); err != nil {
			b.logger.Warn("channelbus: listen failed", "channel", channel, "error", err)
		}
	}

	return func() {
		sub.once.Do(func() { b.removeSubscription(channel, sub) })
	}
}

// removeSubscription drops sub from the channel's callback list and releases
// the store-level listener when the list becomes empty.
func (b *Bus) removeSubscription(channel string, sub *subscription) {
	b.mu.Lock()
	list := b.subs[channel]
	for i, s := range list {
		if s == sub {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(b.subs, channel)
	} else {
		b.subs[channel] = list
	}
	last := len(list) == 0
	closed := b.closed
	b.mu.Unlock()

	if last && !closed {
		if err := b.exec(command{listen: false, channel: channel}); err != nil {
			b.logger.Warn("channelbus: unlisten failed", "channel", channel, "error", err)
		}
	}
}

// Publish serializes data as JSON and forwards it through pg_notify from a
// background goroutine. It returns nothing and cannot fail: delivery is
// best-effort by contract, and a failed notify is only logged. Publishing
// before Init is a no-op.
func (b *Bus) Publish(channel string, data any) {
	b.mu.Lock()
	store := b.store
	closed := b.closed
	b.mu.Unlock()
	if store == nil || closed {
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		b.logger.Warn("channelbus: unmarshalable payload dropped", "channel", channel, "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := store.Notify(ctx, channel, string(payload)); err != nil {
			b.logger.Debug("channelbus: notify dropped", "channel", channel, "error", err)
		}
	}()
}

// exec hands a listen-set change to the run goroutine and waits for it to be
// applied. The run goroutine owns the listen connection, so LISTEN/UNLISTEN
// never race with NextNotification.
func (b *Bus) exec(cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case b.cmds <- cmd:
	case <-time.After(cmdTimeout):
		return errors.New("channelbus: command queue stalled")
	}

	// Interrupt the in-flight wait so the command is picked up promptly.
	b.mu.Lock()
	if b.wake != nil {
		b.wake()
	}
	b.mu.Unlock()

	select {
	case err := <-cmd.reply:
		return err
	case <-time.After(cmdTimeout):
		return errors.New("channelbus: command timed out")
	}
}

// run owns the store-level listen connection: it applies listen-set changes
// and waits for notifications until the bus is closed or the connection is
// lost.
func (b *Bus) run(ctx context.Context, store listener) {
	defer close(b.done)

	for {
		b.drainCommands(ctx, store)

		if ctx.Err() != nil {
			return
		}

		waitCtx, cancel := context.WithCancel(ctx)
		b.mu.Lock()
		b.wake = cancel
		pending := len(b.cmds) > 0
		b.mu.Unlock()
		if pending {
			// A command arrived between drain and wait; don't block on it.
			cancel()
		}

		channel, payload, err := store.NextNotification(waitCtx)
		cancel()
		b.mu.Lock()
		b.wake = nil
		b.mu.Unlock()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.Canceled) {
				// Woken to apply a pending command.
				continue
			}
			// Connection loss drops all pending notifications; reconnection
			// is outside this component's contract.
			b.logger.Error("channelbus: listen connection lost", "error", err)
			return
		}

		b.dispatch(channel, payload)
	}
}

// drainCommands applies all queued listen-set changes.
func (b *Bus) drainCommands(ctx context.Context, store listener) {
	for {
		select {
		case cmd := <-b.cmds:
			var err error
			if cmd.listen {
				err = store.Listen(ctx, cmd.channel)
			} else {
				err = store.Unlisten(ctx, cmd.channel)
			}
			cmd.reply <- err
		default:
			return
		}
	}
}

// dispatch invokes every callback registered for channel, in registration
// order.
func (b *Bus) dispatch(channel, payload string) {
	b.mu.Lock()
	list := b.subs[channel]
	callbacks := make([]Callback, len(list))
	for i, s := range list {
		callbacks[i] = s.cb
	}
	b.mu.Unlock()

	for _, cb := range callbacks {
		cb([]byte(payload))
	}
}
