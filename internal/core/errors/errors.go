package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Protocol errors. A malformed or unknown client command is dropped; the
// connection stays open.
var (
	ErrMalformedCommand = errors.New("malformed client command")
	ErrUnknownCommand   = errors.New("unknown client command")
	ErrRoomRequired     = errors.New("room name is required")
	ErrSendBufferFull   = errors.New("connection send buffer full")
)

// ConfigError reports required credential fields missing at startup. It is
// the only error in the taxonomy meant to be operator-visible: depending on
// policy the process either fails fast or continues without upstream events,
// but never silently.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// StreamError wraps a failure of one upstream change stream. It is consumed
// by that stream's reconnect loop and never propagates to other streams,
// the registry, or dispatch.
type StreamError struct {
	Stream string
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s: %v", e.Stream, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// SendError reports a failed delivery to one connection. The connection is
// unregistered; deliveries to sibling connections are unaffected.
type SendError struct {
	ConnID string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to connection %s: %v", e.ConnID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
