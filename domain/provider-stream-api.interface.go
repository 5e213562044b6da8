package domain

import (
	"context"
	"fmt"
)

// ConnState is the lifecycle of one Connection:
// Idle -> Connecting -> Open -> Closing -> Closed.
type ConnState int32

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// StreamCallbacks are invoked sequentially, in arrival order, from the
// connection reader. A callback must not call Close on its own connection.
type StreamCallbacks struct {
	OnTicker func(*TickerEvent)
	OnDepth  func(*DepthDeltaEvent)
	OnTrade  func(*TradeEvent)
	// OnError receives a *TransportError once per failure. The connection is
	// already closed when it runs.
	OnError func(error)
}

type Connection interface {
	ID() string
	Streams() []string
	State() ConnState
	// Close is idempotent. No callback runs after it returns.
	Close() error
}

type ProviderStreamAPI interface {
	Open(ctx context.Context, symbols []*MarketSymbol, kinds []StreamKind, callbacks StreamCallbacks) (Connection, error)
}

type ProviderSyncAPI interface {
	Ticker(ctx context.Context, symbol *MarketSymbol) (*TickerSnapshot, error)
	AllTickers(ctx context.Context) ([]TickerSnapshot, error)
	OrderBookSnapshot(ctx context.Context, symbol *MarketSymbol, limit int) (*OrderBookState, error)
	// RecentTrades returns trades oldest first.
	RecentTrades(ctx context.Context, symbol *MarketSymbol, limit int) ([]Trade, error)
}
