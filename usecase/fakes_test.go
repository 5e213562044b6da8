package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/spooky-finn/marketsync/domain"
)

type fakeConn struct {
	id      string
	streams []string
	cb      domain.StreamCallbacks
	journal *journal

	mu     sync.Mutex
	closed bool
}

func (c *fakeConn) ID() string        { return c.id }
func (c *fakeConn) Streams() []string { return c.streams }

func (c *fakeConn) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.StateClosed
	}
	return domain.StateOpen
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.journal.add("close:" + c.id)
	return nil
}

// emit delivers ev the way the real reader does and reports whether the
// connection was still open.
func (c *fakeConn) emit(ev domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.journal.add("event:" + c.id)
	deliver(c.cb, ev)
	return true
}

// fail simulates a socket error: the handle closes and OnError runs once.
func (c *fakeConn) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.journal.add("fail:" + c.id)
	c.mu.Unlock()

	c.cb.OnError(&domain.TransportError{ConnID: c.id, Err: err})
}

func deliver(cb domain.StreamCallbacks, ev domain.Event) {
	switch e := ev.(type) {
	case *domain.TickerEvent:
		cb.OnTicker(e)
	case *domain.DepthDeltaEvent:
		cb.OnDepth(e)
	case *domain.TradeEvent:
		cb.OnTrade(e)
	}
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeStreamAPI struct {
	journal journal

	mu      sync.Mutex
	conns   []*fakeConn
	openErr error
}

func (f *fakeStreamAPI) Open(_ context.Context, symbols []*domain.MarketSymbol, kinds []domain.StreamKind, cb domain.StreamCallbacks) (domain.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.openErr != nil {
		return nil, &domain.TransportError{Err: f.openErr}
	}

	conn := &fakeConn{
		id:      fmt.Sprintf("conn-%d", len(f.conns)+1),
		cb:      cb,
		journal: &f.journal,
	}
	for _, s := range symbols {
		for _, k := range kinds {
			conn.streams = append(conn.streams, s.StreamName(string(k)))
		}
	}
	f.conns = append(f.conns, conn)
	f.journal.add("open:" + conn.id)
	return conn, nil
}

func (f *fakeStreamAPI) setOpenErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

func (f *fakeStreamAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeStreamAPI) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

func (f *fakeStreamAPI) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[len(f.conns)-1]
}

type fakeSyncAPI struct {
	mu         sync.Mutex
	err        error
	tickers    []domain.TickerSnapshot
	trades     []domain.Trade
	books      []*domain.OrderBookState
	depthCalls int
}

func (f *fakeSyncAPI) Ticker(_ context.Context, symbol *domain.MarketSymbol) (*domain.TickerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, t := range f.tickers {
		if t.Symbol == symbol.Pair() {
			t := t
			return &t, nil
		}
	}
	return &domain.TickerSnapshot{Symbol: symbol.Pair()}, nil
}

func (f *fakeSyncAPI) AllTickers(context.Context) ([]domain.TickerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.TickerSnapshot(nil), f.tickers...), nil
}

// OrderBookSnapshot returns the configured books in order and repeats the last one.
func (f *fakeSyncAPI) OrderBookSnapshot(_ context.Context, symbol *domain.MarketSymbol, _ int) (*domain.OrderBookState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	i := f.depthCalls
	f.depthCalls++
	if len(f.books) == 0 {
		return domain.NewOrderBookState(symbol.Pair(), 1, nil, nil), nil
	}
	if i >= len(f.books) {
		i = len(f.books) - 1
	}
	return f.books[i], nil
}

func (f *fakeSyncAPI) RecentTrades(context.Context, *domain.MarketSymbol, int) ([]domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Trade(nil), f.trades...), nil
}

func (f *fakeSyncAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.depthCalls
}

func lv(price, qty string) domain.PriceLevel {
	return domain.PriceLevel{Price: price, Quantity: qty}
}

func mustPair(pair string) *domain.MarketSymbol {
	s, err := domain.ParsePair(pair)
	if err != nil {
		panic(err)
	}
	return s
}
