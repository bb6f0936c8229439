package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/arrdem/skrode/internal/domain"
)

// State is the controller's connection state.
type State int

const (
	Disconnected State = iota
	Connected
	ShuttingDown
)

// EventStream is one live transport session delivering decoded events.
type EventStream interface {
	Events() <-chan domain.Event
	Close() error
}

// StreamDialer opens a new transport session.
type StreamDialer interface {
	OpenStream(ctx context.Context) (EventStream, error)
}

// DialerFunc adapts a function to StreamDialer.
type DialerFunc func(ctx context.Context) (EventStream, error)

func (f DialerFunc) OpenStream(ctx context.Context) (EventStream, error) { return f(ctx) }

// Controller keeps a long-lived event stream connected, watches for stalls,
// and dispatches each event through the ingester. It reconnects on watchdog
// expiry or transport failure and exits only on cancellation.
type Controller struct {
	ingester *Ingester
	dialer   StreamDialer
	watchdog time.Duration

	state State
}

func NewController(ingester *Ingester, dialer StreamDialer, watchdog time.Duration) *Controller {
	return &Controller{
		ingester: ingester,
		dialer:   dialer,
		watchdog: watchdog,
		state:    Disconnected,
	}
}

func (c *Controller) State() State { return c.state }

// Run loops connect → dispatch → reconnect until ctx is cancelled. The
// current event finishes dispatching before shutdown; queued work is left
// for the deferred workers, which observe the same cancellation.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			c.state = ShuttingDown
			return nil
		}

		c.state = Disconnected
		stream, err := c.dialer.OpenStream(ctx)
		if err != nil {
			slog.Error("stream connect failed",
				slog.String("error", err.Error()),
				slog.String("module", "ingest"),
			)
			select {
			case <-time.After(c.watchdog):
			case <-ctx.Done():
			}
			continue
		}

		c.state = Connected
		slog.Info("stream connected", slog.String("module", "ingest"))
		c.pump(ctx, stream)
	}
}

// pump dispatches events from one session until it stalls, dies, or the
// controller is cancelled.
func (c *Controller) pump(ctx context.Context, stream EventStream) {
	defer stream.Close()

	timer := time.NewTimer(c.watchdog)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.state = ShuttingDown
			return

		case <-timer.C:
			slog.Info("watchdog expired, reconnecting", slog.String("module", "ingest"))
			return

		case event, ok := <-stream.Events():
			if !ok {
				slog.Info("stream ended, reconnecting", slog.String("module", "ingest"))
				return
			}

			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.watchdog)

			if err := c.ingester.Dispatch(ctx, event); err != nil {
				// Per-event failure: drop the item with a log line, keep the
				// stream alive.
				slog.Error("event dropped",
					slog.String("error", err.Error()),
					slog.String("module", "ingest"),
				)
			}
		}
	}
}
