package core

// Author is the account that posted an event.
type Author struct {
	ID          int64
	DisplayName string
	AvatarURL   string
}

// Event is a single upstream post. It is passed by value so every
// consumer works on its own copy.
type Event struct {
	ID        int64
	IDStr     string
	Text      string
	Author    Author
	Timestamp string
}

// RoomTaggedEvent is the unit published on the broadcast bus.
type RoomTaggedEvent struct {
	RoomID string
	Event  Event
}
