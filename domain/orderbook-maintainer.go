package domain

import (
	"errors"

	"github.com/gammazero/deque"
)

// ErrResyncRequired is returned once when the book can no longer be bridged:
// too many out of sequence updates, or a gap before any diff connected to the
// baseline. Diffs are buffered from then on until Reset installs a new baseline.
var ErrResyncRequired = errors.New("order book needs a new baseline")

const maxPendingUpdates = 1000

// OrderBookMaintainer keeps one book in sync with depth deltas.
// It is not safe for concurrent use; the owning subscription serializes calls.
type OrderBookMaintainer struct {
	book      *OrderBookState
	validator DepthUpdateValidator

	outOfSeqUpdatesLimit  int
	OutOfSequenceErrCount int

	// bridged is set once a diff applied cleanly on top of the baseline.
	bridged          bool
	resyncing        bool
	depthUpdateQueue deque.Deque[*DepthDeltaEvent]
}

func NewOrderBookMaintainer(validator DepthUpdateValidator, outOfSeqUpdatesLimit int) *OrderBookMaintainer {
	if outOfSeqUpdatesLimit <= 0 {
		outOfSeqUpdatesLimit = 10
	}
	return &OrderBookMaintainer{
		validator:            validator,
		outOfSeqUpdatesLimit: outOfSeqUpdatesLimit,
	}
}

func (m *OrderBookMaintainer) Book() *OrderBookState {
	return m.book
}

func (m *OrderBookMaintainer) Resyncing() bool {
	return m.resyncing
}

// Reset installs a baseline and replays the diffs buffered while it was
// fetched. A nil baseline leaves the book empty until the first delta.
// ErrResyncRequired means the baseline is already behind the buffered diffs;
// the replay stops and the rest stays buffered for the next baseline.
func (m *OrderBookMaintainer) Reset(baseline *OrderBookState) error {
	m.book = baseline
	m.resyncing = false
	m.bridged = false
	m.OutOfSequenceErrCount = 0

	pending := make([]*DepthDeltaEvent, 0, m.depthUpdateQueue.Len())
	for m.depthUpdateQueue.Len() > 0 {
		pending = append(pending, m.depthUpdateQueue.PopFront())
	}

	for i, update := range pending {
		if _, err := m.Apply(update); errors.Is(err, ErrResyncRequired) {
			for _, rest := range pending[i+1:] {
				m.enqueue(rest)
			}
			return err
		}
	}
	return nil
}

// Clear drops the book and every buffered diff.
func (m *OrderBookMaintainer) Clear() {
	m.book = nil
	m.bridged = false
	m.resyncing = false
	m.OutOfSequenceErrCount = 0
	m.depthUpdateQueue.Clear()
}

// Apply merges delta into the book and reports whether the book changed.
// Outdated and out of sequence updates are dropped with the validator error.
func (m *OrderBookMaintainer) Apply(delta *DepthDeltaEvent) (bool, error) {
	if delta == nil {
		return false, nil
	}

	if m.resyncing {
		if delta.Partial {
			// a partial book is a baseline on its own
			m.depthUpdateQueue.Clear()
			m.resyncing = false
			m.OutOfSequenceErrCount = 0
			m.book = nil
		} else {
			m.enqueue(delta)
			return false, nil
		}
	}

	if m.book != nil {
		err := m.validator.IsValidUpd(delta, m.book.LastUpdateID)
		switch {
		case err == nil:
		case m.validator.IsErrOutOfSequence(err):
			m.OutOfSequenceErrCount++
			// a gap right after a baseline never closes by itself
			if !m.bridged || m.OutOfSequenceErrCount > m.outOfSeqUpdatesLimit {
				m.resyncing = true
				m.enqueue(delta)
				return false, ErrResyncRequired
			}
			return false, err
		default:
			return false, err
		}
	}

	next, err := MergeOrderBook(m.book, delta)
	if err != nil {
		return false, err
	}
	m.book = next
	m.bridged = true
	return true, nil
}

func (m *OrderBookMaintainer) enqueue(delta *DepthDeltaEvent) {
	m.depthUpdateQueue.PushBack(delta)
	for m.depthUpdateQueue.Len() > maxPendingUpdates {
		m.depthUpdateQueue.PopFront()
	}
}
