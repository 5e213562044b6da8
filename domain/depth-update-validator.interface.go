package domain

import "errors"

var (
	// Registered by the caller; after a threshold is reached the book is rebuilt from a new baseline.
	ErrOrderBookUpdateIsOutOfSequence = errors.New("order book update is out of sequence")
	// Stale or duplicate frames, just skip them.
	ErrOrderBookUpdateIsOutdated = errors.New("order book update is outdated")
)

type DepthUpdateValidator interface {
	// if return nil, the update is valid
	IsValidUpd(update *DepthDeltaEvent, orderBookLastUpdID int64) error
	IsErrOutOfSequence(err error) bool
	IsErrOutdated(err error) bool
}
