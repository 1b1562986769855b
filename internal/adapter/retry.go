package adapter

import (
	"context"
	"time"

	"github.com/plandeck/nudge/internal/event"
)

// Policy bounds one adapter's delivery attempts. A hung adapter call is cut
// off by AttemptTimeout so it cannot hold up the whole batch.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// AttemptTimeout caps each individual Deliver call. Zero means no cap.
	AttemptTimeout time.Duration
	// Backoff is the sleep between attempts, doubled each retry.
	Backoff time.Duration
}

// DefaultPolicy is the policy applied to network-backed adapters.
var DefaultPolicy = Policy{
	MaxAttempts:    2,
	AttemptTimeout: 20 * time.Second,
	Backoff:        500 * time.Millisecond,
}

// wrapped decorates an Adapter with a retry/timeout Policy.
type wrapped struct {
	inner  Adapter
	policy Policy
}

// Wrap returns a, decorated with the given policy. Unconfigured-adapter
// failures are not retried: a missing credential will not appear between
// attempts.
func Wrap(a Adapter, p Policy) Adapter {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	return &wrapped{inner: a, policy: p}
}

func (w *wrapped) Name() string { return w.inner.Name() }

func (w *wrapped) IsConfigured() bool { return w.inner.IsConfigured() }

func (w *wrapped) Deliver(ctx context.Context, ev *event.Notification) Result {
	backoff := w.policy.Backoff
	var res Result
	for attempt := 1; ; attempt++ {
		res = w.attempt(ctx, ev)
		if res.Success {
			return res
		}
		if !w.inner.IsConfigured() {
			// Configuration errors are recoverable only by the operator.
			return res
		}
		if attempt >= w.policy.MaxAttempts || ctx.Err() != nil {
			return res
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return res
		}
	}
}

func (w *wrapped) attempt(ctx context.Context, ev *event.Notification) Result {
	if w.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.policy.AttemptTimeout)
		defer cancel()
	}
	return w.inner.Deliver(ctx, ev)
}
