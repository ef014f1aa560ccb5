// Package websocket adapts gorilla/websocket connections to the relay's client stream.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/gittidev/vibe-socket-test/internal/service"
)

const (
	// DefaultWriteWait is the maximum time allowed to write a message to the peer.
	DefaultWriteWait = 10 * time.Second
	// DefaultPongWait is the maximum time to wait for a pong reply from the peer.
	DefaultPongWait = 60 * time.Second
	// DefaultMaxMessageSize is the maximum inbound message size in bytes.
	DefaultMaxMessageSize = 4096
)

// Options tune a single connection's deadlines.
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	// PingPeriod defaults to nine tenths of PongWait and must be less than it.
	PingPeriod     time.Duration
	MaxMessageSize int64
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = DefaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = DefaultPongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Conn is a server-side websocket stream. Writes are serialized; a read pump
// consumes client frames (and pongs) and closes Done when the client goes away.
type Conn struct {
	ws     *gws.Conn
	opts   Options
	logger *slog.Logger

	writeMu sync.Mutex

	done     chan struct{}
	doneOnce sync.Once

	closeOnce sync.Once
	closeErr  error
}

// NewConn takes ownership of ws and starts its read pump and pinger.
func NewConn(ws *gws.Conn, opts Options) *Conn {
	opts = opts.withDefaults()
	c := &Conn{
		ws:     ws,
		opts:   opts,
		logger: opts.Logger.With("component", "websocket", "remote", ws.RemoteAddr().String()),
		done:   make(chan struct{}),
	}
	go c.readPump()
	go c.pingLoop()
	return c
}

// Done is closed once the peer disconnects, a read or ping fails, or Close is called.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) markDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Conn) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// WriteText sends payload as one text frame. The write deadline is the sooner of
// the configured write wait and ctx's deadline.
func (c *Conn) WriteText(ctx context.Context, payload []byte) error {
	if c.isDone() {
		return service.ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(c.opts.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(gws.TextMessage, payload); err != nil {
		c.markDone()
		if isClosedErr(err) {
			return fmt.Errorf("%w: %w", service.ErrConnClosed, err)
		}
		return fmt.Errorf("write text frame: %w", err)
	}
	return nil
}

// Close sends a normal-closure frame and closes the socket. It is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := gws.FormatCloseMessage(gws.CloseNormalClosure, "")
		if err := c.ws.WriteControl(gws.CloseMessage, msg, time.Now().Add(c.opts.WriteWait)); err != nil && !isClosedErr(err) {
			c.logger.Debug("close frame not sent", "error", err)
		}
		c.writeMu.Unlock()

		c.markDone()
		if err := c.ws.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.closeErr = fmt.Errorf("close websocket: %w", err)
		}
	})
	return c.closeErr
}

// readPump discards inbound frames; its only job is to observe pongs, close
// frames and read errors.
func (c *Conn) readPump() {
	defer c.markDone()

	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		if _, _, err := c.ws.NextReader(); err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseGoingAway, gws.CloseNormalClosure, gws.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(gws.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.markDone()
				return
			}
		}
	}
}

func isClosedErr(err error) bool {
	var closeErr *gws.CloseError
	return errors.As(err, &closeErr) ||
		errors.Is(err, gws.ErrCloseSent) ||
		errors.Is(err, net.ErrClosed)
}

var _ service.Conn = (*Conn)(nil)
