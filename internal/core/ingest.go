package core

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/topicrooms/internal/metrics"
)

// FeedSource delivers raw upstream records one at a time. Reconnection is
// the source's business; any error it returns ends ingestion.
type FeedSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// RecordDecoder turns a raw record into an Event. It returns ErrSkipRecord
// for records that are well formed but carry no event.
type RecordDecoder interface {
	Decode(raw []byte) (Event, error)
}

// IngestState is the lifecycle of the ingestion loop.
type IngestState int32

const (
	IngestStarting IngestState = iota
	IngestRunning
	IngestStopped
)

func (s IngestState) String() string {
	switch s {
	case IngestStarting:
		return "starting"
	case IngestRunning:
		return "running"
	case IngestStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IngestStats is a snapshot of ingestion counters.
type IngestStats struct {
	Received  uint64 `json:"received"`
	Skipped   uint64 `json:"skipped"`
	Malformed uint64 `json:"malformed"`
	Published uint64 `json:"published"`
}

// Ingestor pulls events from the feed, classifies them and publishes one
// RoomTaggedEvent per matching room.
type Ingestor struct {
	registry *Registry
	bus      *Bus[RoomTaggedEvent]
	source   FeedSource
	decoder  RecordDecoder
	log      *zerolog.Logger

	state     atomic.Int32
	received  atomic.Uint64
	skipped   atomic.Uint64
	malformed atomic.Uint64
	published atomic.Uint64
}

// NewIngestor wires an ingestion loop. It does not start it.
func NewIngestor(reg *Registry, bus *Bus[RoomTaggedEvent], source FeedSource, decoder RecordDecoder, logger *zerolog.Logger) *Ingestor {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Ingestor{
		registry: reg,
		bus:      bus,
		source:   source,
		decoder:  decoder,
		log:      logger,
	}
}

// State returns the current lifecycle state.
func (in *Ingestor) State() IngestState {
	return IngestState(in.state.Load())
}

// Stats returns a snapshot of the counters.
func (in *Ingestor) Stats() IngestStats {
	return IngestStats{
		Received:  in.received.Load(),
		Skipped:   in.skipped.Load(),
		Malformed: in.malformed.Load(),
		Published: in.published.Load(),
	}
}

// Run blocks until the feed ends, the bus is closed or ctx is cancelled.
// A cancelled ctx returns ctx.Err(); feed termination returns *FeedError.
func (in *Ingestor) Run(ctx context.Context) error {
	in.state.Store(int32(IngestRunning))
	defer in.state.Store(int32(IngestStopped))

	in.log.Info().Int("rooms", in.registry.Len()).Msg("ingestion started")

	for {
		raw, err := in.source.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				in.log.Info().Msg("ingestion stopped")
				return ctxErr
			}
			if errors.Is(err, io.EOF) {
				err = ErrFeedEnded
			}
			in.log.Error().Err(err).Msg("upstream feed terminated")
			return feedError(err)
		}
		in.received.Add(1)
		metrics.EventsReceived.Inc()

		if err := in.handle(raw); err != nil {
			if errors.Is(err, ErrBusClosed) {
				in.log.Error().Err(err).Msg("publish after bus shutdown")
				return err
			}
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				in.malformed.Add(1)
				metrics.EventsSkipped.WithLabelValues("parse").Inc()
				in.log.Warn().Err(err).Int("bytes", len(raw)).Msg("skipping malformed record")
				continue
			}
			return err
		}
	}
}

func (in *Ingestor) handle(raw []byte) error {
	ev, err := in.decoder.Decode(raw)
	if errors.Is(err, ErrSkipRecord) {
		in.skipped.Add(1)
		metrics.EventsSkipped.WithLabelValues("other").Inc()
		return nil
	}
	if err != nil {
		return parseError(err)
	}

	rooms := Classify(ev, in.registry)
	if len(rooms) == 0 {
		in.log.Debug().Int64("event_id", ev.ID).Msg("event matched no room")
		return nil
	}
	for _, roomID := range rooms {
		if err := in.bus.Publish(RoomTaggedEvent{RoomID: roomID, Event: ev}); err != nil {
			return err
		}
		in.published.Add(1)
		metrics.EventsPublished.WithLabelValues(roomID).Inc()
	}
	in.log.Debug().Int64("event_id", ev.ID).Strs("rooms", rooms).Msg("event published")
	return nil
}
