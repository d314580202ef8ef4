// Package feed subscribes to the killmail relay over a websocket and hands every frame to a handler.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Brotsalat/zkill-ws-slack/logging"
	"github.com/Brotsalat/zkill-ws-slack/periodic"
	"github.com/Brotsalat/zkill-ws-slack/retry"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	Disconnected State = iota
	Connected
	Closing
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ConnectionError is returned by Run if the feed transport failed.
type ConnectionError struct {
	// Op is the failed operation: dial, read or ping.
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("feed %s failed: %s", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Handler receives raw feed frames. It is called from the receive loop and must not block.
type Handler func(raw []byte)

// Connection is a websocket subscription to the killmail relay. A Connection runs one session at a time.
type Connection struct {
	cfg     Config
	dialer  websocket.Dialer
	backoff retry.Backoff
	logger  *logging.Logger
	state   atomic.Int32
}

// NewConnection creates a Connection from cfg, which should have been validated.
func NewConnection(cfg Config, logger *logging.Logger) *Connection {
	return &Connection{
		cfg: cfg,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		backoff: retry.DefaultBackoff,
		logger:  logger,
	}
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) setState(s State) {
	if prev := State(c.state.Swap(int32(s))); prev != s {
		c.logger.Debugw("Feed connection state changed", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

// Run dials the relay and passes every received frame to handler until the connection fails or ctx is done.
// While connected, a ping is sent every keepalive interval. A failed ping closes the connection.
// Run returns nil if ctx was canceled and a *ConnectionError otherwise.
func (c *Connection) Run(ctx context.Context, handler Handler) error {
	return c.run(ctx, handler, func() {})
}

// run is Run calling connected once the handshake succeeded.
func (c *Connection) run(ctx context.Context, handler Handler, connected func()) error {
	header := http.Header{}
	header.Set("User-Agent", c.cfg.UserAgent)

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.Url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		if resp != nil {
			err = errors.Wrapf(err, "relay responded with HTTP %d", resp.StatusCode)
		}

		return &ConnectionError{Op: "dial", Err: err}
	}

	c.setState(Connected)
	c.logger.Infow("Connected to killmail feed", zap.String("url", c.cfg.Url))
	connected()

	session, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		pingErr atomic.Pointer[error]
	)

	c.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		c.extendReadDeadline(conn)
		return nil
	})

	keepalive := periodic.Start(session, c.cfg.KeepaliveInterval, func(periodic.Tick) {
		deadline := time.Now().Add(c.cfg.KeepaliveInterval)
		if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			if session.Err() == nil {
				pingErr.CompareAndSwap(nil, &err)
				_ = conn.Close()
			}
		}
	})
	defer keepalive.Stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-session.Done()

		if ctx.Err() != nil {
			c.setState(Closing)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}

		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.setState(Closing)
			cancel()
			wg.Wait()
			c.setState(Disconnected)

			if ctx.Err() != nil {
				c.logger.Info("Disconnected from killmail feed")
				return nil
			}

			if e := pingErr.Load(); e != nil {
				return &ConnectionError{Op: "ping", Err: *e}
			}

			return &ConnectionError{Op: "read", Err: err}
		}

		c.extendReadDeadline(conn)
		handler(raw)
	}
}

// RunWithReconnect calls Run again with backoff whenever it fails with a retryable error.
// Config.ReconnectTimeout and the backoff attempts count from the first failure of each outage,
// so they start over once a session got connected. Without Config.Reconnect, it is equivalent to Run.
func (c *Connection) RunWithReconnect(ctx context.Context, handler Handler) error {
	if !c.cfg.Reconnect {
		return c.Run(ctx, handler)
	}

	for {
		var (
			established bool
			sessionErr  error
		)

		err := retry.WithBackoff(
			ctx,
			func(ctx context.Context) error {
				established = false
				sessionErr = c.run(ctx, handler, func() { established = true })

				return sessionErr
			},
			func(err error) bool { return !established && retry.Retryable(err) },
			c.backoff,
			retry.Settings{
				Timeout: c.cfg.ReconnectTimeout,
				OnRetryableError: func(elapsed time.Duration, attempt uint64, err, _ error) {
					c.logger.Warnw("Can't reconnect to killmail feed, retrying",
						logging.Error(err), zap.Uint64("attempt", attempt), zap.Duration("elapsed", elapsed))
				},
			},
		)
		if err == nil || ctx.Err() != nil {
			return nil
		}

		if !established || !retry.Retryable(sessionErr) {
			return err
		}

		c.logger.Warnw("Feed connection lost, reconnecting", logging.Error(sessionErr))

		wait := time.NewTimer(c.backoff(1))
		select {
		case <-wait.C:
		case <-ctx.Done():
			wait.Stop()
			return nil
		}
	}
}

func (c *Connection) extendReadDeadline(conn *websocket.Conn) {
	if c.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}
