package usecase

import (
	"context"
	"sync/atomic"

	"github.com/spooky-finn/marketsync/domain"
)

const FavoritesContext = "favorites"

// FavoritesSnapshot is the read-only fan-out state. Coins keep the order
// they were loaded in; Skipped lists ids of coins without a tradable pair.
type FavoritesSnapshot struct {
	UserID  string              `json:"userId"`
	Coins   []domain.CoinEntity `json:"coins"`
	Skipped []string            `json:"skipped,omitempty"`
}

type FavoritesTarget struct {
	UserID string
	Coins  []domain.CoinEntity
}

// FavoritesView projects ticker updates of many symbols, sharing one
// connection, onto the matching coins.
type FavoritesView struct {
	store   FavoritesStore
	state   *favoritesState
	manager *SubscriptionManager[FavoritesTarget]
}

func NewFavoritesView(
	stream domain.ProviderStreamAPI,
	syncAPI domain.ProviderSyncAPI,
	store FavoritesStore,
	cfg ManagerConfig,
	sink Sink,
) *FavoritesView {
	if cfg.Name == "" {
		cfg.Name = FavoritesContext
	}
	state := &favoritesState{syncAPI: syncAPI}
	state.snapshot.Store(&FavoritesSnapshot{})

	return &FavoritesView{
		store:   store,
		state:   state,
		manager: NewSubscriptionManager[FavoritesTarget](cfg, stream, state, sink),
	}
}

// LoadUser switches the subscription to the favorites of userID.
func (v *FavoritesView) LoadUser(ctx context.Context, userID string) error {
	coins, err := v.store.FavoriteCoins(ctx, userID)
	if err != nil {
		return err
	}
	return v.SetCoins(ctx, userID, coins)
}

// SetCoins switches the subscription to coins. The slice is copied.
func (v *FavoritesView) SetCoins(ctx context.Context, userID string, coins []domain.CoinEntity) error {
	return v.manager.Switch(ctx, FavoritesTarget{
		UserID: userID,
		Coins:  append([]domain.CoinEntity(nil), coins...),
	})
}

func (v *FavoritesView) Close() error {
	return v.manager.Close()
}

func (v *FavoritesView) Status() Status {
	return v.manager.Status()
}

// Snapshot must not be modified by the caller.
func (v *FavoritesView) Snapshot() *FavoritesSnapshot {
	return v.state.snapshot.Load()
}

type favoritesState struct {
	syncAPI domain.ProviderSyncAPI

	userID string
	coins  []domain.CoinEntity
	index  *domain.CoinIndex

	snapshot atomic.Pointer[FavoritesSnapshot]
}

func (s *favoritesState) Kinds() []domain.StreamKind {
	return []domain.StreamKind{domain.StreamTicker}
}

func (s *favoritesState) Symbols(target FavoritesTarget) []*domain.MarketSymbol {
	return domain.BuildCoinIndex(target.Coins).Symbols()
}

func (s *favoritesState) Reset(target FavoritesTarget) {
	s.userID = target.UserID
	s.coins = target.Coins
	s.index = domain.BuildCoinIndex(target.Coins)
	s.publish(s.coins)
}

// FetchBaseline seeds every coin from the all-markets ticker in one call.
func (s *favoritesState) FetchBaseline(ctx context.Context, target FavoritesTarget) (Install, error) {
	index := domain.BuildCoinIndex(target.Coins)
	if index.SymbolCount() == 0 {
		return func() ([]Update, error) { return nil, nil }, nil
	}

	tickers, err := s.syncAPI.AllTickers(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make([]*domain.TickerEvent, 0, index.SymbolCount())
	for _, t := range tickers {
		if _, err := index.Get(t.Symbol); err == nil {
			wanted = append(wanted, &domain.TickerEvent{Ticker: t})
		}
	}

	return func() ([]Update, error) {
		updates := make([]Update, 0, len(wanted))
		for _, ev := range wanted {
			if upd := s.project(ev); upd != nil {
				updates = append(updates, *upd)
			}
		}
		return updates, nil
	}, nil
}

// Resync is never reached: favorites subscribe to tickers only and hold no book.
func (s *favoritesState) Resync(context.Context, string) (Install, error) {
	return nil, nil
}

func (s *favoritesState) Apply(ev domain.Event) (*Update, error) {
	ticker, ok := ev.(*domain.TickerEvent)
	if !ok {
		return nil, nil
	}
	return s.project(ticker), nil
}

// project updates every coin indexed under the ticker pair and leaves the
// others untouched.
func (s *favoritesState) project(ev *domain.TickerEvent) *Update {
	if s.index == nil {
		return nil
	}
	positions, err := s.index.Get(ev.Pair())
	if err != nil {
		return nil
	}

	next := make([]domain.CoinEntity, len(s.coins))
	copy(next, s.coins)

	changed := make([]domain.CoinEntity, 0, len(positions))
	for _, pos := range positions {
		next[pos] = domain.ProjectTicker(next[pos], ev)
		changed = append(changed, next[pos])
	}
	s.coins = next
	s.publish(next)

	ticker := ev.Ticker
	return &Update{Kind: domain.StreamTicker, Symbol: ev.Pair(), Ticker: &ticker, Coins: changed}
}

func (s *favoritesState) publish(coins []domain.CoinEntity) {
	snap := &FavoritesSnapshot{
		UserID: s.userID,
		Coins:  coins,
	}
	if s.index != nil {
		snap.Skipped = s.index.Skipped()
	}
	s.snapshot.Store(snap)
}
