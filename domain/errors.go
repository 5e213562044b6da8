package domain

import (
	"errors"
	"fmt"
)

var ErrConnectionClosed = errors.New("connection is closed")

// DecodeError reports a malformed push frame. The frame is dropped and the
// connection keeps running.
type DecodeError struct {
	Stream string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Stream == "" {
		return fmt.Sprintf("decode frame: %v", e.Err)
	}
	return fmt.Sprintf("decode frame of stream %s: %v", e.Stream, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError is a socket level failure of one connection.
type TransportError struct {
	ConnID string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on connection %s: %v", e.ConnID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BaselineFetchError is returned when a REST snapshot call fails.
type BaselineFetchError struct {
	Symbol   string
	Resource string
	Status   int
	Err      error
}

func (e *BaselineFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s baseline for %s: status %d: %v", e.Resource, e.Symbol, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s baseline for %s: %v", e.Resource, e.Symbol, e.Err)
}

func (e *BaselineFetchError) Unwrap() error { return e.Err }
