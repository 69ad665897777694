package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/topicrooms/internal/metrics"
)

// ErrUnauthorized is returned when the upstream rejects the credentials.
// Reconnecting will not help, so it ends the stream immediately.
var ErrUnauthorized = errors.New("upstream rejected credentials")

// StreamConfig configures a StreamSource.
type StreamConfig struct {
	URL   string
	Token string
	// Track is sent as the comma separated "track" query parameter.
	Track          []string
	ReconnectDelay time.Duration
	// MaxReconnects is the number of consecutive failed attempts tolerated
	// before Next gives up. Zero means retry forever.
	MaxReconnects int
	Client        *http.Client
}

// StreamSource reads newline delimited JSON records from a long lived HTTP
// response, reconnecting when the stream drops.
type StreamSource struct {
	cfg      StreamConfig
	client   *http.Client
	limiter  *rate.Limiter
	log      *zerolog.Logger
	body     io.ReadCloser
	lines    *lineReader
	failures int
	attempts int
}

// NewStreamSource builds a source. No connection is made until Next.
func NewStreamSource(cfg StreamConfig, logger *zerolog.Logger) *StreamSource {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	client := cfg.Client
	if client == nil {
		// No overall timeout: the response body is an endless stream.
		client = &http.Client{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &StreamSource{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(cfg.ReconnectDelay), 1),
		log:     logger,
	}
}

// Next returns the next non-empty line. The context of the call that opens a
// connection also bounds that connection's lifetime.
func (s *StreamSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if s.lines == nil {
			if err := s.connect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if errors.Is(err, ErrUnauthorized) {
					return nil, err
				}
				if giveUp := s.fail(err); giveUp != nil {
					return nil, giveUp
				}
				continue
			}
		}

		line, err := s.lines.next()
		if err == nil {
			s.failures = 0
			return line, nil
		}
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		s.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if giveUp := s.fail(err); giveUp != nil {
			return nil, giveUp
		}
	}
}

func (s *StreamSource) fail(err error) error {
	s.failures++
	if s.cfg.MaxReconnects > 0 && s.failures > s.cfg.MaxReconnects {
		return fmt.Errorf("giving up after %d failed attempts: %w", s.failures, err)
	}
	s.log.Warn().Err(err).Int("failures", s.failures).Dur("delay", s.cfg.ReconnectDelay).Msg("upstream stream dropped, reconnecting")
	return nil
}

func (s *StreamSource) connect(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	s.attempts++
	if s.attempts > 1 {
		metrics.FeedReconnects.Inc()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	s.body = resp.Body
	s.lines = newLineReader(resp.Body, maxLineBytes)
	s.log.Info().Str("url", s.cfg.URL).Int("track_terms", len(s.cfg.Track)).Msg("connected to upstream stream")
	return nil
}

func (s *StreamSource) streamURL() string {
	if len(s.cfg.Track) == 0 {
		return s.cfg.URL
	}
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return s.cfg.URL
	}
	q := u.Query()
	q.Set("track", strings.Join(s.cfg.Track, ","))
	u.RawQuery = q.Encode()
	return u.String()
}

// Close drops the current connection, if any.
func (s *StreamSource) Close() error {
	var err error
	if s.body != nil {
		err = s.body.Close()
	}
	s.body = nil
	s.lines = nil
	return err
}
