package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/topicrooms/internal/config"
	"github.com/vovakirdan/topicrooms/internal/core"
	"github.com/vovakirdan/topicrooms/internal/proto"
)

type testEnv struct {
	registry *core.Registry
	bus      *core.Bus[core.RoomTaggedEvent]
	cfg      *config.Config
	wsURL    string
	baseURL  string
}

type fakeIngest struct {
	state core.IngestState
	stats core.IngestStats
}

func (f fakeIngest) State() core.IngestState { return f.state }
func (f fakeIngest) Stats() core.IngestStats { return f.stats }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.StaticDir = ""
	cfg.ControlRate = 0
	return &cfg
}

func startTestServer(t *testing.T, cfg *config.Config, ingest IngestStatus) *testEnv {
	t.Helper()

	reg, err := core.BuildRegistry([]core.RoomSpec{
		{ID: "nba", Label: "NBA hashtags", RawTopics: "#Lakers\n#Celtics\n"},
		{ID: "rust", Label: "Rust", RawTopics: "Rust\nasync-std\n"},
	}, core.MatchOptions{})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	bus := core.NewBus[core.RoomTaggedEvent](64)
	t.Cleanup(bus.Close)

	server, err := NewServer(reg, bus, ingest, cfg, nopLogger())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		registry: reg,
		bus:      bus,
		cfg:      cfg,
		baseURL:  ts.URL,
		wsURL:    strings.Replace(ts.URL, "http", "ws", 1) + "/ws",
	}
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()
	before := e.bus.Len()
	conn, _, err := websocket.Dial(ctx, e.wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	waitFor(t, "session subscribe", func() bool { return e.bus.Len() > before })
	return conn
}

func (e *testEnv) publish(t *testing.T, room, text string) {
	t.Helper()
	if err := e.bus.Publish(core.RoomTaggedEvent{RoomID: room, Event: core.Event{Text: text}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

// switchRoom sends a room id and waits until the switch is applied.
func (e *testEnv) switchRoom(t *testing.T, ctx context.Context, conn *websocket.Conn, room string) {
	t.Helper()
	sendControl(t, ctx, conn, room)
	e.awaitRoom(t, ctx, conn, room)
}

func sendControl(t *testing.T, ctx context.Context, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
		t.Fatalf("write control: %v", err)
	}
}

// awaitRoom keeps publishing probes to room until the first one arrives.
func (e *testEnv) awaitRoom(t *testing.T, ctx context.Context, conn *websocket.Conn, room string) {
	t.Helper()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			_ = e.bus.Publish(core.RoomTaggedEvent{RoomID: room, Event: core.Event{Text: "probe"}})
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()

	readUntil(t, ctx, conn, "probe")
}

// readUntil reads frames until one carries text and returns the non-probe
// texts seen before it.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, text string) []string {
	t.Helper()
	var seen []string
	for {
		var frame proto.Tweet
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read frame waiting for %q: %v", text, err)
		}
		if frame.Text == text {
			return seen
		}
		if frame.Text != "probe" {
			seen = append(seen, frame.Text)
		}
	}
}

func nopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
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
