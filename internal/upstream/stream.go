package upstream

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arrdem/skrode/internal/domain"
)

// streamReadTimeout is deliberately longer than the controller's watchdog:
// the transport-level deadline is the backstop, the watchdog is the policy.
const streamReadTimeout = 90 * time.Second

// Stream is one live websocket session against the event firehose. Frames
// are decoded exactly once here; the controller consumes domain events and
// owns the watchdog.
type Stream struct {
	conn   *websocket.Conn
	events chan domain.Event
}

// OpenStream dials the event stream and starts delivering decoded events.
// The events channel is closed when the transport fails or Close is called;
// the caller reconnects by opening a new stream.
func (c *Client) OpenStream(ctx context.Context) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL, nil)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		conn:   conn,
		events: make(chan domain.Event),
	}

	go func() {
		defer close(s.events)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.Debug("stream closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "stream"),
						)
					}
				} else {
					slog.Debug("stream read failed",
						slog.String("error", err.Error()),
						slog.String("module", "stream"),
					)
				}
				return
			}

			select {
			case s.events <- domain.DecodeEvent(raw):
			case <-ctx.Done():
				return
			}
		}
	}()

	return s, nil
}

// Events yields decoded frames until the session dies.
func (s *Stream) Events() <-chan domain.Event { return s.events }

// Close tears down the transport. The events channel closes shortly after.
func (s *Stream) Close() error {
	return s.conn.Close()
}
