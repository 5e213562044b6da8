package domain

import "github.com/gammazero/deque"

const TradeFeedCapacity = 20

type Trade struct {
	ID            int64  `json:"id"`
	Symbol        string `json:"symbol,omitempty"`
	Price         string `json:"price"`
	Quantity      string `json:"qty"`
	QuoteQuantity string `json:"quoteQty"`
	Time          int64  `json:"time"`
	IsBuyerMaker  bool   `json:"isBuyerMaker"`
	IsBestMatch   bool   `json:"isBestMatch"`
}

// TradeFeed is an immutable most-recent-first list of trades.
type TradeFeed []Trade

// Push returns a new feed with t in front, truncated to TradeFeedCapacity.
func (f TradeFeed) Push(t Trade) TradeFeed {
	keep := len(f)
	if keep > TradeFeedCapacity-1 {
		keep = TradeFeedCapacity - 1
	}
	out := make(TradeFeed, 0, keep+1)
	out = append(out, t)
	return append(out, f[:keep]...)
}

// TradeRing is the mutable, single-writer buffer behind a TradeFeed.
// Trades are kept in arrival order, newest at the front.
type TradeRing struct {
	buf      deque.Deque[Trade]
	capacity int

	// ids present in buf, only tracked when dedupe is on
	seen map[int64]struct{}
}

func NewTradeRing(capacity int, dedupe bool) *TradeRing {
	if capacity <= 0 {
		capacity = TradeFeedCapacity
	}
	r := &TradeRing{capacity: capacity}
	if dedupe {
		r.seen = make(map[int64]struct{}, capacity)
	}
	return r
}

// Push inserts t as the most recent trade and evicts the oldest one when the
// ring is full. With dedupe enabled a trade id already in the ring is
// ignored and false is returned.
func (r *TradeRing) Push(t Trade) bool {
	if r.seen != nil {
		if _, ok := r.seen[t.ID]; ok {
			return false
		}
		r.seen[t.ID] = struct{}{}
	}

	r.buf.PushFront(t)
	for r.buf.Len() > r.capacity {
		evicted := r.buf.PopBack()
		if r.seen != nil {
			delete(r.seen, evicted.ID)
		}
	}
	return true
}

// Seed loads a REST baseline, which the exchange returns oldest first.
func (r *TradeRing) Seed(trades []Trade) {
	for _, t := range trades {
		r.Push(t)
	}
}

func (r *TradeRing) Len() int {
	return r.buf.Len()
}

func (r *TradeRing) Snapshot() TradeFeed {
	out := make(TradeFeed, r.buf.Len())
	for i := range out {
		out[i] = r.buf.At(i)
	}
	return out
}
