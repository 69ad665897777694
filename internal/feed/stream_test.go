package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestStreamSourceReadsLinesAndReconnects(t *testing.T) {
	var connects atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := connects.Add(1)
		if got := r.URL.Query().Get("track"); got != "Lakers,Rust" {
			t.Errorf("track = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		fmt.Fprintf(w, "{\"id\":%d}\r\n\r\n", n)
	}))
	defer ts.Close()

	src := NewStreamSource(StreamConfig{
		URL:            ts.URL + "/stream",
		Token:          "secret",
		Track:          []string{"Lakers", "Rust"},
		ReconnectDelay: 10 * time.Millisecond,
	}, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 1; i <= 3; i++ {
		line, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if want := fmt.Sprintf("{\"id\":%d}", i); string(line) != want {
			t.Fatalf("line %d = %q, want %q", i, line, want)
		}
	}
	if connects.Load() != 3 {
		t.Fatalf("expected a reconnect per dropped stream, got %d connects", connects.Load())
	}
}

func TestStreamSourceGivesUp(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	src := NewStreamSource(StreamConfig{
		URL:            ts.URL,
		ReconnectDelay: time.Millisecond,
		MaxReconnects:  2,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := src.Next(ctx); err == nil {
		t.Fatalf("expected error after exhausting reconnects")
	}
}

func TestStreamSourceUnauthorizedIsPermanent(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	src := NewStreamSource(StreamConfig{URL: ts.URL, ReconnectDelay: time.Millisecond}, nil)
	_, err := src.Next(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("unauthorized stream retried %d times", calls.Load())
	}
}

func TestStreamSourceHonoursContext(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(block)

	src := NewStreamSource(StreamConfig{URL: ts.URL, ReconnectDelay: time.Millisecond}, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFileSourceReplaysUntilEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":1}\n\n  \n{\"id\":2}\n"), 0o600); err != nil {
		t.Fatalf("write feed: %v", err)
	}

	src, err := OpenFile(path, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	for _, want := range []string{`{"id":1}`, `{"id":2}`} {
		line, err := src.Next(ctx)
		if err != nil || string(line) != want {
			t.Fatalf("got %q, %v; want %q", line, err, want)
		}
	}
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestFileSourceContinuesAfterOversizedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	data := "{\"id\":1}\n" + strings.Repeat("y", maxLineBytes+10) + "\n{\"id\":2}\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write feed: %v", err)
	}

	src, err := OpenFile(path, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	if line, err := src.Next(ctx); err != nil || string(line) != `{"id":1}` {
		t.Fatalf("first record: %q, %v", line, err)
	}
	if line, err := src.Next(ctx); err != nil || len(line) != maxLineBytes {
		t.Fatalf("oversized record: len %d, %v", len(line), err)
	}
	if line, err := src.Next(ctx); err != nil || string(line) != `{"id":2}` {
		t.Fatalf("record after oversized line: %q, %v", line, err)
	}
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestOpenFileMissing(t *testing.T) {
	if _, err := OpenFile(filepath.Join(t.TempDir(), "nope.jsonl"), 0); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
