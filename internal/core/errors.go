package core

import (
	"errors"
	"fmt"
)

// Error codes for domain errors.
const (
	ErrCodeConfig  = "config_error"
	ErrCodeFeed    = "feed_error"
	ErrCodeParse   = "parse_error"
	ErrCodeSession = "session_error"
)

var (
	ErrBusClosed          = errors.New("broadcast bus closed")
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrFeedEnded          = errors.New("upstream feed ended")
	ErrSkipRecord         = errors.New("record skipped")
	ErrUnknownRoom        = errors.New("unknown room")
	ErrUnsupportedFrame   = errors.New("unsupported frame")
	ErrRateLimited        = errors.New("control messages rate limited")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid room set or default room. Fatal at startup.
type ConfigError struct{ CoreError }

// FeedError reports that the upstream feed terminated. Fatal for ingestion.
type FeedError struct{ CoreError }

// ParseError reports a single malformed upstream record. The record is skipped.
type ParseError struct{ CoreError }

// SessionError terminates one client session and nothing else.
type SessionError struct {
	CoreError
	SessionID string
}

func configError(err error, format string, args ...any) *ConfigError {
	return &ConfigError{CoreError{Code: ErrCodeConfig, Message: fmt.Sprintf(format, args...), Err: err}}
}

// NewConfigError is used by the config layer for errors found outside the registry.
func NewConfigError(format string, args ...any) *ConfigError {
	return configError(nil, format, args...)
}

func feedError(err error) *FeedError {
	return &FeedError{CoreError{Code: ErrCodeFeed, Message: "upstream feed stopped", Err: err}}
}

func parseError(err error) *ParseError {
	return &ParseError{CoreError{Code: ErrCodeParse, Message: "malformed upstream record", Err: err}}
}

func sessionError(id string, err error, msg string) *SessionError {
	return &SessionError{
		CoreError: CoreError{Code: ErrCodeSession, Message: msg, Err: err},
		SessionID: id,
	}
}

// IsFatal reports whether err should stop the process.
func IsFatal(err error) bool {
	var cfgErr *ConfigError
	var feedErr *FeedError
	return errors.As(err, &cfgErr) || errors.As(err, &feedErr) || errors.Is(err, ErrBusClosed)
}
