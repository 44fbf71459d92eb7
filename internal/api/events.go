package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	dialBaseDelay = 1 * time.Second
	dialMaxDelay  = 30 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// EventStream is a long-lived subscription to the engine's event feed.
// Envelopes arrive on Events until the subscription ends; Err reports why
// it ended once Events is closed (nil for a clean cancellation).
type EventStream struct {
	events chan Envelope

	mu  sync.Mutex
	err error
}

// Events returns the envelope channel. It is closed when the subscription ends.
func (s *EventStream) Events() <-chan Envelope { return s.events }

// Err returns the terminal error, valid after Events is closed.
func (s *EventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *EventStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Subscribe opens the /event websocket and delivers envelopes until the
// context is cancelled or the connection fails. Dialing retries with capped
// backoff; a failure after the stream is established ends the subscription.
func (c *Client) Subscribe(ctx context.Context) *EventStream {
	s := &EventStream{events: make(chan Envelope, 64)}
	go s.run(ctx, c)
	return s
}

func (s *EventStream) run(ctx context.Context, c *Client) {
	defer close(s.events)

	conn, err := dial(ctx, c)
	if err != nil {
		if ctx.Err() == nil {
			s.fail(err)
		}
		return
	}
	defer conn.Close()

	// connCtx bounds the helper goroutines to this connection, so an ended
	// subscription does not keep them parked on the caller's context.
	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()
	go pingLoop(connCtx, conn)

	// Unblock ReadMessage when the caller tears us down.
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !isClosedErr(err) {
				s.fail(err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		select {
		case s.events <- env:
		case <-ctx.Done():
			return
		}
	}
}

func dial(ctx context.Context, c *Client) (*websocket.Conn, error) {
	wsURL, err := deriveEventURL(c.baseURL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	delay := dialBaseDelay
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, dialMaxDelay)
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// deriveEventURL converts http://host:port → ws://host:port/event.
func deriveEventURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid engine URL %q: %w", baseURL, err)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/event", scheme, u.Host), nil
}

// isClosedErr reports whether a read error is an expected close rather than
// a transport failure worth surfacing.
func isClosedErr(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}
