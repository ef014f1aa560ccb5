package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gittidev/vibe-socket-test/internal/adapters/memory"
	"github.com/gittidev/vibe-socket-test/internal/core"
)

// fakeConn is an in-memory client stream.
type fakeConn struct {
	frames   chan []byte
	done     chan struct{}
	writeErr error

	mu      sync.Mutex
	closed  bool
	closes  int
	onClose func()
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) WriteText(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames <- append([]byte(nil), payload...)
	return nil
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

// disconnect simulates the client going away.
func (c *fakeConn) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	hook := c.onClose
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConn) accept() AcceptFunc {
	return func() (Conn, error) { return c, nil }
}

func (c *fakeConn) nextFrame(t *testing.T, wait time.Duration) []byte {
	t.Helper()
	select {
	case f := <-c.frames:
		return f
	case <-time.After(wait):
		t.Fatalf("no frame within %s", wait)
		return nil
	}
}

func (c *fakeConn) assertNoFrame(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case f := <-c.frames:
		t.Fatalf("unexpected frame %s", f)
	case <-time.After(wait):
	}
}

func newMemoryChannel(t *testing.T) *memory.Channel {
	t.Helper()
	ch := memory.New(memory.Options{})
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func subscriberCount(t *testing.T, counter core.SubscriberCounter, topic string) int64 {
	t.Helper()
	n, err := counter.SubscriberCount(context.Background(), topic)
	require.NoError(t, err)
	return n
}

func waitForSubscribers(t *testing.T, counter core.SubscriberCounter, topic string, want int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		n, err := counter.SubscriberCount(context.Background(), topic)
		return err == nil && n == want
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d subscribers on %s", want, topic)
}
