package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/topicrooms/internal/metrics"
)

// UnknownRoomPolicy decides what a session does with a control message that
// names no registered room.
type UnknownRoomPolicy string

const (
	// UnknownRoomClear stops forwarding until a valid room id arrives.
	UnknownRoomClear UnknownRoomPolicy = "clear"
	// UnknownRoomKeep ignores the message and stays in the current room.
	UnknownRoomKeep UnknownRoomPolicy = "keep"
	// UnknownRoomReject terminates the session.
	UnknownRoomReject UnknownRoomPolicy = "reject"
)

// ParseUnknownRoomPolicy validates a policy name. Empty means clear.
func ParseUnknownRoomPolicy(s string) (UnknownRoomPolicy, error) {
	switch p := UnknownRoomPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return UnknownRoomClear, nil
	case UnknownRoomClear, UnknownRoomKeep, UnknownRoomReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown room policy %q", s)
	}
}

// SessionConn is the client transport as seen by a session. ReadControl
// returns io.EOF when the client closed the connection normally and
// ErrUnsupportedFrame for anything that is not a text frame.
type SessionConn interface {
	ReadControl(ctx context.Context) (string, error)
	WriteEvent(ctx context.Context, ev Event) error
}

// SessionOptions configures a session.
type SessionOptions struct {
	DefaultRoom string
	UnknownRoom UnknownRoomPolicy
	// Limiter throttles control messages. Nil disables throttling.
	Limiter *rate.Limiter
}

// SessionState is the lifecycle of a session.
type SessionState int32

const (
	SessionConnected SessionState = iota
	SessionClosed
)

type arrivalKind int

const (
	arrivalControl arrivalKind = iota
	arrivalEvent
	arrivalError
)

// arrival is one item of the merged input stream.
type arrival struct {
	kind arrivalKind
	text string
	item RoomTaggedEvent
	err  error
}

// Session forwards events of one selected room to one client.
type Session struct {
	ID string

	registry *Registry
	conn     SessionConn
	sub      *Subscription[RoomTaggedEvent]
	opts     SessionOptions
	log      zerolog.Logger

	mu       sync.Mutex
	current  string
	tracking bool

	state     atomic.Int32
	closeOnce sync.Once
}

// NewSession subscribes to bus and selects the default room.
func NewSession(id string, reg *Registry, bus *Bus[RoomTaggedEvent], conn SessionConn, opts SessionOptions, logger *zerolog.Logger) (*Session, error) {
	if _, ok := reg.Lookup(opts.DefaultRoom); !ok {
		return nil, configError(ErrUnknownRoom, "default room %q is not registered", opts.DefaultRoom)
	}
	if opts.UnknownRoom == "" {
		opts.UnknownRoom = UnknownRoomClear
	}

	sub, err := bus.Subscribe()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Session{
		ID:       id,
		registry: reg,
		conn:     conn,
		sub:      sub,
		opts:     opts,
		log:      logger.With().Str("session_id", id).Logger(),
		current:  opts.DefaultRoom,
		tracking: true,
	}
	metrics.SessionsActive.Inc()
	return s, nil
}

// CurrentRoom returns the selected room. ok is false after an unknown room id
// cleared the selection.
func (s *Session) CurrentRoom() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.tracking
}

// State returns the lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// SessionCloser is implemented by connections that can report the session
// outcome to the peer. CloseSession is called once, before the pumps stop.
type SessionCloser interface {
	CloseSession(err error)
}

// Run merges client control messages and bus events until either side
// closes. It returns nil on a normal close and *SessionError otherwise.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	arrivals := make(chan arrival)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readPump(ctx, arrivals)
	}()
	go func() {
		defer wg.Done()
		s.busPump(ctx, arrivals)
	}()

	err := s.loop(ctx, arrivals)
	if closer, ok := s.conn.(SessionCloser); ok {
		closer.CloseSession(err)
	}
	cancel()
	wg.Wait()
	return err
}

func (s *Session) loop(ctx context.Context, arrivals <-chan arrival) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case a := <-arrivals:
			switch a.kind {
			case arrivalControl:
				if err := s.handleControl(a.text); err != nil {
					return s.finish(err)
				}
			case arrivalEvent:
				if err := s.handleEvent(ctx, a.item); err != nil {
					return s.finish(err)
				}
			case arrivalError:
				// A failed pump always ends the session.
				if err := s.handleFailure(a.err); err != nil {
					return s.finish(err)
				}
				return nil
			}
		}
	}
}

func (s *Session) readPump(ctx context.Context, out chan<- arrival) {
	for {
		text, err := s.conn.ReadControl(ctx)
		a := arrival{kind: arrivalControl, text: text}
		if err != nil {
			a = arrival{kind: arrivalError, err: err}
		}
		select {
		case out <- a:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) busPump(ctx context.Context, out chan<- arrival) {
	for {
		item, err := s.sub.Next(ctx)
		a := arrival{kind: arrivalEvent, item: item}
		if err != nil {
			a = arrival{kind: arrivalError, err: err}
		}
		select {
		case out <- a:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) handleControl(text string) error {
	if s.opts.Limiter != nil && !s.opts.Limiter.Allow() {
		return sessionError(s.ID, ErrRateLimited, "too many control messages")
	}

	roomID := strings.TrimSpace(text)
	if _, ok := s.registry.Lookup(roomID); ok {
		s.setRoom(roomID, true)
		metrics.RoomSwitches.WithLabelValues("switched").Inc()
		s.log.Debug().Str("room", roomID).Msg("room switched")
		return nil
	}

	metrics.RoomSwitches.WithLabelValues("unknown").Inc()
	switch s.opts.UnknownRoom {
	case UnknownRoomKeep:
		s.log.Debug().Str("room", roomID).Msg("ignoring unknown room")
	case UnknownRoomReject:
		return sessionError(s.ID, fmt.Errorf("%w: %q", ErrUnknownRoom, roomID), "rejected control message")
	default:
		s.setRoom("", false)
		s.log.Debug().Str("room", roomID).Msg("unknown room, forwarding stopped")
	}
	return nil
}

func (s *Session) handleEvent(ctx context.Context, item RoomTaggedEvent) error {
	room, ok := s.CurrentRoom()
	if !ok || item.RoomID != room {
		return nil
	}
	if err := s.conn.WriteEvent(ctx, item.Event); err != nil {
		return sessionError(s.ID, err, "send failed")
	}
	metrics.EventsForwarded.WithLabelValues(room).Inc()
	return nil
}

// handleFailure maps a pump error to the session outcome. Normal client
// close and bus shutdown end the session quietly.
func (s *Session) handleFailure(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		s.log.Debug().Msg("client closed connection")
		return nil
	case errors.Is(err, ErrSubscriptionClosed):
		s.log.Debug().Msg("broadcast bus closed")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, ErrUnsupportedFrame):
		return sessionError(s.ID, err, "malformed control message")
	default:
		return sessionError(s.ID, err, "connection failed")
	}
}

func (s *Session) finish(err error) error {
	metrics.SessionErrors.Inc()
	s.log.Warn().Err(err).Msg("session terminated")
	return err
}

func (s *Session) setRoom(id string, tracking bool) {
	s.mu.Lock()
	s.current = id
	s.tracking = tracking
	s.mu.Unlock()
}

// Close releases the bus subscription. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(SessionClosed))
		s.sub.Close()
		metrics.SessionsActive.Dec()
	})
}
