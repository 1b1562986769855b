package channelbus

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeListener mimics the Postgres notification primitive: Notify loops back
// to NextNotification, but only for channels with an active LISTEN.
type fakeListener struct {
	mu            sync.Mutex
	listening     map[string]bool
	listenCalls   []string
	unlistenCalls []string
	notifs        chan [2]string
}

func newFakeListener() *fakeListener {
	return &fakeListener{
		listening: make(map[string]bool),
		notifs:    make(chan [2]string, 16),
	}
}

func (f *fakeListener) Listen(_ context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listening[channel] = true
	f.listenCalls = append(f.listenCalls, channel)
	return nil
}

func (f *fakeListener) Unlisten(_ context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listening, channel)
	f.unlistenCalls = append(f.unlistenCalls, channel)
	return nil
}

func (f *fakeListener) Notify(_ context.Context, channel, payload string) error {
	f.mu.Lock()
	active := f.listening[channel]
	f.mu.Unlock()
	if active {
		f.notifs <- [2]string{channel, payload}
	}
	return nil
}

func (f *fakeListener) NextNotification(ctx context.Context) (string, string, error) {
	select {
	case n := <-f.notifs:
		return n[0], n[1], nil
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

func (f *fakeListener) Close(_ context.Context) error { return nil }

func (f *fakeListener) listens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listenCalls...)
}

func (f *fakeListener) unlistens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unlistenCalls...)
}

func newTestBus(t *testing.T) (*Bus, *fakeListener) {
	t.Helper()
	store := newFakeListener()
	bus := New(slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	bus.initWith(store)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Close(ctx)
	})
	return bus, store
}

// testWriter routes bus logs through the test log.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestSubscribeRefCounting(t *testing.T) {
	bus, store := newTestBus(t)

	unsub1 := bus.Subscribe("notifications", func([]byte) {})
	unsub2 := bus.Subscribe("notifications", func([]byte) {})

	// Two local callbacks, exactly one store-level LISTEN.
	assert.Equal(t, []string{"notifications"}, store.listens())

	unsub1()
	assert.Empty(t, store.unlistens(), "listener must stay open while a callback remains")

	unsub2()
	assert.Equal(t, []string{"notifications"}, store.unlistens())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus, store := newTestBus(t)

	unsub := bus.Subscribe("notifications", func([]byte) {})
	bus.Subscribe("notifications", func([]byte) {})

	unsub()
	unsub()
	unsub()

	assert.Empty(t, store.unlistens())
}

func TestPublishAndReceive(t *testing.T) {
	bus, _ := newTestBus(t)

	got := make(chan []byte, 1)
	bus.Subscribe("notifications", func(p []byte) { got <- p })

	bus.Publish("notifications", map[string]string{"event": "task.blocked"})

	select {
	case p := <-got:
		assert.JSONEq(t, `{"event":"task.blocked"}`, string(p))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestCallbackRegistrationOrder(t *testing.T) {
	bus, _ := newTestBus(t)

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 1; i <= 3; i++ {
		i := i
		bus.Subscribe("ordered", func([]byte) {
			mu.Lock()
			order = append(order, i)
			full := len(order) == 3
			mu.Unlock()
			if full {
				close(done)
			}
		})
	}

	bus.Publish("ordered", "ping")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callbacks")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestPublishBeforeInitIsNoOp(t *testing.T) {
	bus := New(slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	// Must not panic; resolves as a no-op.
	bus.Publish("notifications", map[string]string{"k": "v"})
}

func TestSubscribeBeforeInitIsNoOp(t *testing.T) {
	bus := New(slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	unsub := bus.Subscribe("notifications", func([]byte) {})
	require.NotNil(t, unsub)
	unsub()
}

func TestChannelsAreIsolated(t *testing.T) {
	bus, _ := newTestBus(t)

	gotA := make(chan []byte, 1)
	bus.Subscribe("channel-a", func(p []byte) { gotA <- p })
	bus.Subscribe("channel-b", func([]byte) { t.Error("channel-b callback should not fire") })

	bus.Publish("channel-a", "only-a")

	select {
	case <-gotA:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel-a")
	}
}

func TestCloseTwiceIsSafe(t *testing.T) {
	store := newFakeListener()
	bus := New(slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	bus.initWith(store)

	ctx := context.Background()
	require.NoError(t, bus.Close(ctx))
	require.NoError(t, bus.Close(ctx))
}
