package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/topicrooms/internal/config"
	"github.com/vovakirdan/topicrooms/internal/core"
	"github.com/vovakirdan/topicrooms/internal/proto"
	"github.com/vovakirdan/topicrooms/internal/utils"
)

// WSHandler upgrades HTTP connections and runs a core.Session on each.
type WSHandler struct {
	registry *core.Registry
	bus      *core.Bus[core.RoomTaggedEvent]
	cfg      *config.Config
	policy   core.UnknownRoomPolicy
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. It fails with a
// *core.ConfigError when the unknown room policy is invalid.
func NewWSHandler(reg *core.Registry, bus *core.Bus[core.RoomTaggedEvent], cfg *config.Config, logger *zerolog.Logger) (*WSHandler, error) {
	policy, err := core.ParseUnknownRoomPolicy(cfg.UnknownRoomPolicy)
	if err != nil {
		return nil, core.NewConfigError("%v", err)
	}
	return &WSHandler{registry: reg, bus: bus, cfg: cfg, policy: policy, log: logger}, nil
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	opts := core.SessionOptions{
		DefaultRoom: h.cfg.DefaultRoom,
		UnknownRoom: h.policy,
		Limiter:     newControlLimiter(h.cfg.ControlRate, h.cfg.ControlBurst),
	}

	wc := &wsConn{conn: conn}
	session, err := core.NewSession(utils.NewID(), h.registry, h.bus, wc, opts, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to start session")
		if errors.Is(err, core.ErrBusClosed) {
			conn.Close(websocket.StatusTryAgainLater, "shutting down")
			return
		}
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}

	h.log.Info().Str("session_id", session.ID).Str("room", opts.DefaultRoom).Msg("session opened")
	err = session.Run(ctx)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", session.ID).Msg("ws connection closed with error")
		return
	}
	h.log.Info().Str("session_id", session.ID).Msg("session closed")
}

// wsConn adapts a websocket connection to core.SessionConn.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadControl(ctx context.Context) (string, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return "", io.EOF
		}
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	if typ != websocket.MessageText || !utf8.Valid(data) {
		return "", core.ErrUnsupportedFrame
	}
	return string(data), nil
}

func (c *wsConn) WriteEvent(ctx context.Context, ev core.Event) error {
	return wsjson.Write(ctx, c.conn, proto.FromEvent(ev))
}

// CloseSession sends the close frame matching the session outcome.
func (c *wsConn) CloseSession(err error) {
	status, reason := closeStatusFor(err)
	_ = c.conn.Close(status, reason)
}
