package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/debatesync/internal/proto"
)

var errConnClosed = errors.New("fake conn closed")

// fakeConn is a scriptable transport: tests push inbound frames and inspect
// what the manager wrote.
type fakeConn struct {
	mu     sync.Mutex
	in     chan []byte
	writes [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case raw := <-c.in:
		return raw, nil
	case <-c.closed:
		return nil, errConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(raw string) {
	c.in <- []byte(raw)
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) firstWrite() []byte {
	return c.write(0)
}

func (c *fakeConn) write(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= len(c.writes) {
		return nil
	}
	return c.writes[i]
}

// fakeDialer counts attempts and hands out conns (or errors) per attempt.
type fakeDialer struct {
	mu       sync.Mutex
	attempts int
	next     func(attempt int) (Conn, error)
}

func (d *fakeDialer) dial(_ context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.attempts++
	attempt := d.attempts
	next := d.next
	d.mu.Unlock()
	return next(attempt)
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

// recorder collects handler invocations on a channel, in arrival order.
type recorder struct {
	events chan string
}

func newRecorder() *recorder {
	return &recorder{events: make(chan string, 32)}
}

func (r *recorder) record(ev string) {
	select {
	case r.events <- ev:
	default:
	}
}

func (r *recorder) HandleAuthenticated(userID string) { r.record("authenticated:" + userID) }

func (r *recorder) HandleAuthError(message string) { r.record("auth_error:" + message) }
func (r *recorder) HandleDebateMessage(roomID string, msg proto.ChatMessage) {
	r.record("message:" + roomID + ":" + msg.Content)
}
func (r *recorder) HandleUserNotification(n proto.Notification) { r.record("notification:" + n.Title) }
func (r *recorder) HandleDebateEnded(roomID string)             { r.record("ended:" + roomID) }
func (r *recorder) HandleNewDebate(roomID, opponent string) {
	r.record("new_debate:" + roomID + ":" + opponent)
}
func (r *recorder) HandleOpponentTyping(roomID, userID string, isTyping bool) {
	r.record("typing:" + roomID + ":" + userID)
}

func mustEvent(t *testing.T, events chan string, want string) {
	t.Helper()
	select {
	case got := <-events:
		if got != want {
			t.Fatalf("expected event %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event %q", want)
	}
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
