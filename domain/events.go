package domain

type StreamKind string

const (
	StreamTicker StreamKind = "ticker"
	StreamDepth  StreamKind = "depth"
	StreamTrade  StreamKind = "trade"
)

func (k StreamKind) Valid() bool {
	switch k {
	case StreamTicker, StreamDepth, StreamTrade:
		return true
	}
	return false
}

// Event is one decoded push frame. The concrete type is one of
// *TickerEvent, *DepthDeltaEvent, *TradeEvent or *UnrecognizedEvent.
type Event interface {
	Kind() StreamKind
	// Pair is the exchange symbol the frame belongs to, e.g. "BTCUSDT".
	Pair() string
	sealed()
}

type TickerEvent struct {
	EventTime int64
	Ticker    TickerSnapshot
}

type DepthDeltaEvent struct {
	Symbol        string
	EventTime     int64
	FirstUpdateID int64
	LastUpdateID  int64
	Bids          []PriceLevel
	Asks          []PriceLevel
	// Partial marks a top-N book snapshot; otherwise the frame is a level diff.
	Partial bool
}

type TradeEvent struct {
	EventTime int64
	Trade     Trade
}

// UnrecognizedEvent is produced for stream names the codec does not handle.
// Consumers drop it.
type UnrecognizedEvent struct {
	Stream string
}

func (e *TickerEvent) Kind() StreamKind       { return StreamTicker }
func (e *DepthDeltaEvent) Kind() StreamKind   { return StreamDepth }
func (e *TradeEvent) Kind() StreamKind        { return StreamTrade }
func (e *UnrecognizedEvent) Kind() StreamKind { return "" }

func (e *TickerEvent) Pair() string       { return e.Ticker.Symbol }
func (e *DepthDeltaEvent) Pair() string   { return e.Symbol }
func (e *TradeEvent) Pair() string        { return e.Trade.Symbol }
func (e *UnrecognizedEvent) Pair() string { return "" }

func (*TickerEvent) sealed()       {}
func (*DepthDeltaEvent) sealed()   {}
func (*TradeEvent) sealed()        {}
func (*UnrecognizedEvent) sealed() {}
