package proto

import (
	"errors"

	"github.com/vovakirdan/topicrooms/internal/core"
)

// Decoder turns raw upstream lines into core events.
type Decoder struct{}

// Decode implements core.RecordDecoder. Keep-alives and non-post messages
// are reported as core.ErrSkipRecord.
func (Decoder) Decode(raw []byte) (core.Event, error) {
	tw, err := DecodeRecord(raw)
	if errors.Is(err, ErrKeepAlive) || errors.Is(err, ErrNotEvent) {
		return core.Event{}, core.ErrSkipRecord
	}
	if err != nil {
		return core.Event{}, err
	}
	return ToEvent(tw), nil
}

// ToEvent maps the wire shape to the domain model.
func ToEvent(tw Tweet) core.Event {
	return core.Event{
		ID:    tw.ID,
		IDStr: tw.IDStr,
		Text:  tw.Text,
		Author: core.Author{
			ID:          tw.User.ID,
			DisplayName: tw.User.ScreenName,
			AvatarURL:   tw.User.ProfileImageURLHTTPS,
		},
		Timestamp: tw.TimestampMS,
	}
}

// FromEvent maps a domain event to the outbound frame.
func FromEvent(ev core.Event) Tweet {
	return Tweet{
		ID:    ev.ID,
		IDStr: ev.IDStr,
		Text:  ev.Text,
		User: User{
			ID:                   ev.Author.ID,
			ScreenName:           ev.Author.DisplayName,
			ProfileImageURLHTTPS: ev.Author.AvatarURL,
		},
		TimestampMS: ev.Timestamp,
	}
}
