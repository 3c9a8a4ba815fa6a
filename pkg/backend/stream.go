package backend

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowdeck/core/logging"
)

// reconnectDelay is the fixed pause between dial attempts after the push
// channel drops. Reconnection here is transport-level only; no command is
// ever retried on behalf of the caller.
const reconnectDelay = 2 * time.Second

// Subscribe opens the push channel and returns a channel of typed events.
// The WebSocket is owned by a goroutine scoped to ctx: cancelling the
// context closes the connection and the event channel. Connection drops are
// reported as ConnectionEvents and followed by automatic re-dials.
func (c *HTTPClient) Subscribe(ctx context.Context) (<-chan Event, error) {
	logger := logging.NewLogger("push-channel")

	conn, err := dialStream(ctx, c.streamURL)
	if err != nil {
		return nil, err
	}

	ch := make(chan Event, 16)

	go func() {
		defer close(ch)
		defer func() {
			if conn != nil {
				conn.Close()
			}
		}()

		emit := func(ev Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(ConnectionEvent{State: ConnConnected}) {
			return
		}

		for {
			// Unblock ReadMessage when the context is cancelled.
			done := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					conn.Close()
				case <-done:
				}
			}()

			msgType, data, err := conn.ReadMessage()
			close(done)

			if ctx.Err() != nil {
				return
			}

			if err != nil {
				logger.WithError(err).Debug("Push channel read failed")
				if !emit(ConnectionEvent{State: ConnDisconnected, Detail: err.Error()}) {
					return
				}
				conn.Close()
				conn = nil

				// Re-dial until the context is cancelled.
				for conn == nil {
					select {
					case <-ctx.Done():
						return
					case <-time.After(reconnectDelay):
					}
					conn, err = dialStream(ctx, c.streamURL)
					if err != nil {
						logger.WithError(err).Debug("Push channel redial failed")
					}
				}
				if !emit(ConnectionEvent{State: ConnConnected}) {
					return
				}
				continue
			}

			if msgType != websocket.TextMessage {
				continue
			}

			ev, err := decodeFrame(data)
			if err != nil {
				logger.WithError(err).Warn("Dropping undecodable push event")
				continue
			}
			if ev == nil {
				// Unknown event name; forward-compatible skip.
				continue
			}
			if !emit(ev) {
				return
			}
		}
	}()

	return ch, nil
}

// dialStream opens the WebSocket with no overall timeout: the stream lives
// as long as the session page.
func dialStream(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
