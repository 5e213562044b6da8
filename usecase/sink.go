package usecase

import (
	"github.com/spooky-finn/marketsync/domain"
)

// Update describes one applied change of a subscription context. Values are
// snapshots and must not be modified by sinks.
type Update struct {
	Context   string                 `json:"context"`
	Kind      domain.StreamKind      `json:"kind"`
	Symbol    string                 `json:"symbol"`
	Ticker    *domain.TickerSnapshot `json:"ticker,omitempty"`
	OrderBook *domain.OrderBookState `json:"orderBook,omitempty"`
	Trade     *domain.Trade          `json:"trade,omitempty"`
	Coins     []domain.CoinEntity    `json:"coins,omitempty"`
}

// Sink receives updates from the callback goroutine and must not block.
type Sink interface {
	Publish(upd Update)
}

type MultiSink []Sink

func (ms MultiSink) Publish(upd Update) {
	for _, s := range ms {
		if s != nil {
			s.Publish(upd)
		}
	}
}

// ChanSink forwards updates to a buffered channel and drops them when it is full.
type ChanSink struct {
	ch chan Update
}

func NewChanSink(size int) *ChanSink {
	return &ChanSink{ch: make(chan Update, size)}
}

func (s *ChanSink) Publish(upd Update) {
	select {
	case s.ch <- upd:
	default:
	}
}

func (s *ChanSink) C() <-chan Update {
	return s.ch
}
