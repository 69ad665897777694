package core

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("expected event not received")
	}
	return Event{}
}

func mustNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event forwarded: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func mustNext[T any](t *testing.T, sub *Subscription[T]) T {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	item, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	return item
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	reg, err := BuildRegistry([]RoomSpec{
		{ID: "sports", Label: "Sports", RawTopics: "Lakers\nCeltics"},
		{ID: "tech", Label: "Tech", RawTopics: "Rust\ncompiler"},
	}, MatchOptions{})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

// fakeConn is an in-memory SessionConn.
type fakeConn struct {
	inbound  chan string
	outbound chan Event
	readErr  chan error
	writeErr error
	closed   chan error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan string, 8),
		outbound: make(chan Event, 64),
		readErr:  make(chan error, 1),
		closed:   make(chan error, 1),
	}
}

func (c *fakeConn) ReadControl(ctx context.Context) (string, error) {
	select {
	case text, ok := <-c.inbound:
		if !ok {
			return "", io.EOF
		}
		return text, nil
	case err := <-c.readErr:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *fakeConn) WriteEvent(_ context.Context, ev Event) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.outbound <- ev
	return nil
}

func (c *fakeConn) CloseSession(err error) {
	c.closed <- err
}

var errBoom = errors.New("boom")
