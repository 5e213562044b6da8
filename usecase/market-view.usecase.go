package usecase

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/spooky-finn/marketsync/domain"
)

const MarketContext = "market"

// MarketSnapshot is the read-only state of the focused symbol. A new value is
// published after every applied event.
type MarketSnapshot struct {
	Symbol    string                 `json:"symbol"`
	Ticker    *domain.TickerSnapshot `json:"ticker,omitempty"`
	OrderBook *domain.OrderBookState `json:"orderBook,omitempty"`
	BestBid   *domain.PriceLevel     `json:"bestBid,omitempty"`
	BestAsk   *domain.PriceLevel     `json:"bestAsk,omitempty"`
	Trades    domain.TradeFeed       `json:"trades"`
}

type MarketViewConfig struct {
	DepthLimit        int
	TradeLimit        int
	DisplayDepth      int
	TradeCapacity     int
	DedupeTrades      bool
	OutOfSeqThreshold int
	Manager           ManagerConfig
}

// MarketView follows one symbol with ticker, depth and trade streams.
type MarketView struct {
	state   *marketState
	manager *SubscriptionManager[*domain.MarketSymbol]
}

func NewMarketView(
	stream domain.ProviderStreamAPI,
	syncAPI domain.ProviderSyncAPI,
	validator domain.DepthUpdateValidator,
	cfg MarketViewConfig,
	sink Sink,
) *MarketView {
	if cfg.Manager.Name == "" {
		cfg.Manager.Name = MarketContext
	}
	state := &marketState{
		syncAPI:    syncAPI,
		cfg:        cfg,
		maintainer: domain.NewOrderBookMaintainer(validator, cfg.OutOfSeqThreshold),
		trades:     domain.NewTradeRing(cfg.TradeCapacity, cfg.DedupeTrades),
	}
	state.snapshot.Store(&MarketSnapshot{})

	return &MarketView{
		state:   state,
		manager: NewSubscriptionManager[*domain.MarketSymbol](cfg.Manager, stream, state, sink),
	}
}

// Switch focuses the view on symbol; nil unsubscribes.
func (v *MarketView) Switch(ctx context.Context, symbol *domain.MarketSymbol) error {
	return v.manager.Switch(ctx, symbol)
}

func (v *MarketView) Close() error {
	return v.manager.Close()
}

func (v *MarketView) Status() Status {
	return v.manager.Status()
}

// Snapshot must not be modified by the caller.
func (v *MarketView) Snapshot() *MarketSnapshot {
	return v.state.snapshot.Load()
}

type marketState struct {
	syncAPI domain.ProviderSyncAPI
	cfg     MarketViewConfig

	symbol     *domain.MarketSymbol
	ticker     *domain.TickerSnapshot
	maintainer *domain.OrderBookMaintainer
	trades     *domain.TradeRing

	snapshot atomic.Pointer[MarketSnapshot]
}

func (s *marketState) Kinds() []domain.StreamKind {
	return []domain.StreamKind{domain.StreamTicker, domain.StreamDepth, domain.StreamTrade}
}

func (s *marketState) Symbols(target *domain.MarketSymbol) []*domain.MarketSymbol {
	if target == nil {
		return nil
	}
	return []*domain.MarketSymbol{target}
}

func (s *marketState) Reset(target *domain.MarketSymbol) {
	s.symbol = target
	s.ticker = nil
	s.maintainer.Clear()
	s.trades = domain.NewTradeRing(s.cfg.TradeCapacity, s.cfg.DedupeTrades)
	s.publish()
}

type marketBaseline struct {
	ticker *domain.TickerSnapshot
	book   *domain.OrderBookState
	trades []domain.Trade
}

// FetchBaseline loads ticker, depth and trades in parallel. Any failure
// fails the whole baseline.
func (s *marketState) FetchBaseline(ctx context.Context, target *domain.MarketSymbol) (Install, error) {
	var b marketBaseline
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker, err := s.syncAPI.Ticker(gctx, target)
		b.ticker = ticker
		return err
	})
	g.Go(func() error {
		book, err := s.syncAPI.OrderBookSnapshot(gctx, target, s.cfg.DepthLimit)
		b.book = book
		return err
	})
	g.Go(func() error {
		trades, err := s.syncAPI.RecentTrades(gctx, target, s.cfg.TradeLimit)
		b.trades = trades
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return func() ([]Update, error) {
		s.ticker = b.ticker
		err := s.resetBook(b.book)
		s.trades.Seed(b.trades)
		snap := s.publish()

		return []Update{
			{Kind: domain.StreamTicker, Symbol: snap.Symbol, Ticker: snap.Ticker},
			{Kind: domain.StreamDepth, Symbol: snap.Symbol, OrderBook: snap.OrderBook},
		}, err
	}, nil
}

func (s *marketState) Resync(ctx context.Context, pair string) (Install, error) {
	symbol, err := domain.ParsePair(pair)
	if err != nil {
		return nil, err
	}

	book, err := s.syncAPI.OrderBookSnapshot(ctx, symbol, s.cfg.DepthLimit)
	if err != nil {
		return nil, err
	}

	return func() ([]Update, error) {
		if !symbol.Equal(s.symbol) {
			return nil, nil
		}
		err := s.resetBook(book)
		snap := s.publish()
		return []Update{{Kind: domain.StreamDepth, Symbol: snap.Symbol, OrderBook: snap.OrderBook}}, err
	}, nil
}

func (s *marketState) resetBook(book *domain.OrderBookState) error {
	if err := s.maintainer.Reset(book); err != nil {
		return &ResyncError{Pair: s.symbol.Pair()}
	}
	return nil
}

func (s *marketState) Apply(ev domain.Event) (*Update, error) {
	if s.symbol == nil || ev.Pair() != s.symbol.Pair() {
		return nil, nil
	}

	switch e := ev.(type) {
	case *domain.TickerEvent:
		ticker := e.Ticker
		s.ticker = &ticker
		snap := s.publish()
		return &Update{Kind: domain.StreamTicker, Symbol: snap.Symbol, Ticker: snap.Ticker}, nil

	case *domain.DepthDeltaEvent:
		changed, err := s.maintainer.Apply(e)
		if !changed {
			return nil, err
		}
		snap := s.publish()
		return &Update{Kind: domain.StreamDepth, Symbol: snap.Symbol, OrderBook: snap.OrderBook}, err

	case *domain.TradeEvent:
		if !s.trades.Push(e.Trade) {
			return nil, nil
		}
		trade := e.Trade
		s.publish()
		return &Update{Kind: domain.StreamTrade, Symbol: s.symbol.Pair(), Trade: &trade}, nil
	}
	return nil, nil
}

func (s *marketState) publish() *MarketSnapshot {
	snap := &MarketSnapshot{
		Ticker: s.ticker,
		Trades: s.trades.Snapshot(),
	}
	if s.symbol != nil {
		snap.Symbol = s.symbol.Pair()
	}
	if book := s.maintainer.Book(); book != nil {
		snap.OrderBook = book.Top(s.cfg.DisplayDepth)
		if bid, ok := book.BestBid(); ok {
			snap.BestBid = &bid
		}
		if ask, ok := book.BestAsk(); ok {
			snap.BestAsk = &ask
		}
	}
	s.snapshot.Store(snap)
	return snap
}
