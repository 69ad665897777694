package http

import (
	"errors"
	"strings"

	"github.com/coder/websocket"

	"github.com/vovakirdan/topicrooms/internal/core"
)

// maxCloseReason is the websocket limit for close frame reasons.
const maxCloseReason = 123

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Topics []string `json:"topics"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func roomToResponse(room *core.Room) RoomResponse {
	topics := make([]string, len(room.Topics))
	copy(topics, room.Topics)
	return RoomResponse{ID: room.ID, Label: room.Label, Topics: topics}
}

// closeStatusFor maps a session outcome to a websocket close frame.
func closeStatusFor(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil:
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, core.ErrUnsupportedFrame):
		return websocket.StatusUnsupportedData, "text frames only"
	case errors.Is(err, core.ErrRateLimited):
		return websocket.StatusPolicyViolation, "too many control messages"
	case errors.Is(err, core.ErrUnknownRoom):
		return websocket.StatusPolicyViolation, truncateReason(err.Error())
	default:
		return websocket.StatusInternalError, "internal error"
	}
}

func truncateReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	return strings.ToValidUTF8(reason[:maxCloseReason], "")
}
