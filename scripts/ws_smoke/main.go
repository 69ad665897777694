package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/topicrooms/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run connects, optionally switches room and waits for a number of events.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	room := flag.String("room", "", "room id to switch to (default room when empty)")
	count := flag.Int("count", 1, "number of events to wait for")
	timeout := flag.Duration("timeout", 30*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if *room != "" {
		if err := conn.Write(ctx, websocket.MessageText, []byte(*room)); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}

	for i := 0; i < *count; i++ {
		var tw proto.Tweet
		if err := wsjson.Read(ctx, conn, &tw); err != nil {
			return fmt.Errorf("read event %d of %d: %w", i+1, *count, err)
		}
		fmt.Printf("Event: id=%s user=%s text=%q ts=%s\n", tw.IDStr, tw.User.ScreenName, tw.Text, tw.TimestampMS)
	}
	return nil
}
