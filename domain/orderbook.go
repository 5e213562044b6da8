package domain

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// PriceLevel is one [price, quantity] row. It is encoded as a two element
// JSON array of decimal strings, the way the exchange sends it.
type PriceLevel struct {
	Price    string
	Quantity string
}

func (l PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Price, l.Quantity})
}

func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("price level: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("price level: expected [price, quantity], got %d values", len(raw))
	}

	price, err := decimalString(raw[0])
	if err != nil {
		return fmt.Errorf("price level price: %w", err)
	}
	qty, err := decimalString(raw[1])
	if err != nil {
		return fmt.Errorf("price level quantity: %w", err)
	}

	l.Price = price
	l.Quantity = qty
	return nil
}

// decimalString accepts "1.5" and 1.5 and returns the textual form unchanged.
func decimalString(raw json.RawMessage) (string, error) {
	s := string(bytes.TrimSpace(raw))
	if len(s) > 0 && s[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
	}
	if _, err := decimal.NewFromString(s); err != nil {
		return "", fmt.Errorf("%q is not a decimal", s)
	}
	return s, nil
}

// OrderBookState is an immutable view of a book. Bids are sorted by price
// descending, asks ascending, prices are unique and quantities non-zero.
type OrderBookState struct {
	Symbol       string       `json:"symbol"`
	LastUpdateID int64        `json:"lastUpdateId"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
}

func NewOrderBookState(symbol string, lastUpdateID int64, bids, asks []PriceLevel) *OrderBookState {
	return &OrderBookState{
		Symbol:       symbol,
		LastUpdateID: lastUpdateID,
		Bids:         updateDepth(nil, bids, false),
		Asks:         updateDepth(nil, asks, true),
	}
}

// MergeOrderBook returns the book that results from applying delta on current.
// current is never modified. A nil current makes the delta the initial book.
// Deltas whose LastUpdateID does not advance the book are rejected with
// ErrOrderBookUpdateIsOutdated and current is returned as is.
//
// Partial deltas replace every non-empty side; an empty side keeps the
// previous levels. Diff deltas are merged level by level and a zero quantity
// removes the level.
func MergeOrderBook(current *OrderBookState, delta *DepthDeltaEvent) (*OrderBookState, error) {
	if delta == nil {
		return current, nil
	}
	if current == nil {
		return NewOrderBookState(delta.Symbol, delta.LastUpdateID, delta.Bids, delta.Asks), nil
	}
	if delta.LastUpdateID <= current.LastUpdateID {
		return current, ErrOrderBookUpdateIsOutdated
	}

	next := &OrderBookState{
		Symbol:       current.Symbol,
		LastUpdateID: delta.LastUpdateID,
		Bids:         current.Bids,
		Asks:         current.Asks,
	}
	if next.Symbol == "" {
		next.Symbol = delta.Symbol
	}

	var bidBase, askBase []PriceLevel
	if !delta.Partial {
		bidBase, askBase = current.Bids, current.Asks
	}
	if len(delta.Bids) > 0 {
		next.Bids = updateDepth(bidBase, delta.Bids, false)
	}
	if len(delta.Asks) > 0 {
		next.Asks = updateDepth(askBase, delta.Asks, true)
	}

	return next, nil
}

// Top returns a copy limited to the first limit levels of each side.
func (ob *OrderBookState) Top(limit int) *OrderBookState {
	if ob == nil {
		return nil
	}
	return &OrderBookState{
		Symbol:       ob.Symbol,
		LastUpdateID: ob.LastUpdateID,
		Bids:         limitDepth(ob.Bids, limit),
		Asks:         limitDepth(ob.Asks, limit),
	}
}

func (ob *OrderBookState) BestBid() (PriceLevel, bool) {
	if ob == nil || len(ob.Bids) == 0 {
		return PriceLevel{}, false
	}
	return ob.Bids[0], true
}

func (ob *OrderBookState) BestAsk() (PriceLevel, bool) {
	if ob == nil || len(ob.Asks) == 0 {
		return PriceLevel{}, false
	}
	return ob.Asks[0], true
}

func limitDepth(depth []PriceLevel, limit int) []PriceLevel {
	if limit > 0 && len(depth) > limit {
		depth = depth[:limit]
	}
	out := make([]PriceLevel, len(depth))
	copy(out, depth)
	return out
}

type parsedLevel struct {
	level PriceLevel
	price decimal.Decimal
	qty   decimal.Decimal
}

// updateDepth applies changes on top of depth into a fresh slice. Later rows
// for the same price win, zero quantities remove the level and rows that do
// not parse are skipped.
func updateDepth(depth []PriceLevel, changes []PriceLevel, isAsks bool) []PriceLevel {
	index := make(map[string]int, len(depth)+len(changes))
	levels := make([]parsedLevel, 0, len(depth)+len(changes))

	apply := func(rows []PriceLevel) {
		for _, row := range rows {
			price, err := decimal.NewFromString(row.Price)
			if err != nil {
				continue
			}
			qty, err := decimal.NewFromString(row.Quantity)
			if err != nil {
				continue
			}

			key := price.String()
			if i, ok := index[key]; ok {
				levels[i] = parsedLevel{level: row, price: price, qty: qty}
				continue
			}
			index[key] = len(levels)
			levels = append(levels, parsedLevel{level: row, price: price, qty: qty})
		}
	}
	apply(depth)
	apply(changes)

	kept := levels[:0]
	for _, l := range levels {
		if !l.qty.IsZero() {
			kept = append(kept, l)
		}
	}

	if isAsks {
		sort.Slice(kept, func(i, j int) bool {
			return kept[i].price.LessThan(kept[j].price)
		})
	} else {
		sort.Slice(kept, func(i, j int) bool {
			return kept[i].price.GreaterThan(kept[j].price)
		})
	}

	result := make([]PriceLevel, len(kept))
	for i, l := range kept {
		result[i] = l.level
	}
	return result
}
