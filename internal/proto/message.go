package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotEvent marks a well-formed record that is not a post (delete
	// notices, limit notices and similar stream housekeeping).
	ErrNotEvent = errors.New("record is not an event")
	// ErrKeepAlive marks an empty keep-alive line.
	ErrKeepAlive = errors.New("keep-alive")
)

// User is the author object of an upstream record.
type User struct {
	ID                   int64  `json:"id"`
	ScreenName           string `json:"screen_name"`
	ProfileImageURLHTTPS string `json:"profile_image_url_https"`
}

// Tweet is the upstream record shape. It is also the outbound frame sent to
// websocket clients.
type Tweet struct {
	ID          int64  `json:"id"`
	IDStr       string `json:"id_str"`
	Text        string `json:"text"`
	User        User   `json:"user"`
	TimestampMS string `json:"timestamp_ms"`
}

// DecodeRecord parses one raw upstream line. It returns ErrKeepAlive for
// blank lines, ErrNotEvent for well-formed non-post messages and a wrapped
// syntax error for anything else.
func DecodeRecord(raw []byte) (Tweet, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Tweet{}, ErrKeepAlive
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Tweet{}, fmt.Errorf("decode record: %w", err)
	}
	if _, ok := fields["text"]; !ok {
		return Tweet{}, ErrNotEvent
	}
	if _, ok := fields["user"]; !ok {
		return Tweet{}, ErrNotEvent
	}

	var tw Tweet
	if err := json.Unmarshal(raw, &tw); err != nil {
		return Tweet{}, fmt.Errorf("decode tweet: %w", err)
	}
	return tw, nil
}
