package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/marketsync/domain"
)

func favoriteCoins() []domain.CoinEntity {
	return []domain.CoinEntity{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: 1},
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: 2},
		{ID: "tether", Symbol: "usdt", Name: "Tether", CurrentPrice: 1},
		{ID: "wrapped-bitcoin", Symbol: "BTC", Name: "Bitcoin (copy)", CurrentPrice: 3},
	}
}

func TestFavoritesView_BaselineFansOutToCoins(t *testing.T) {
	stream := &fakeStreamAPI{}
	syncAPI := &fakeSyncAPI{
		tickers: []domain.TickerSnapshot{
			{Symbol: "BTCUSDT", LastPrice: "50000", PriceChange: "-10", PriceChangePercent: "-0.02", QuoteVolume: "1000"},
			{Symbol: "ETHUSDT", LastPrice: "3000", PriceChange: "5", PriceChangePercent: "0.17", QuoteVolume: "500"},
			{Symbol: "XRPUSDT", LastPrice: "0.5"},
		},
	}
	view := NewFavoritesView(stream, syncAPI, nil, ManagerConfig{}, nil)
	defer view.Close()

	require.NoError(t, view.SetCoins(context.Background(), "alice", favoriteCoins()))

	snap := view.Snapshot()
	assert.Equal(t, "alice", snap.UserID)
	assert.Equal(t, []string{"tether"}, snap.Skipped)
	require.Len(t, snap.Coins, 4)
	assert.Equal(t, 50000.0, snap.Coins[0].CurrentPrice)
	assert.Equal(t, -10.0, snap.Coins[0].PriceChange24h)
	assert.Equal(t, -0.02, snap.Coins[0].PriceChangePercentage24h)
	assert.Equal(t, 1000.0, snap.Coins[0].TotalVolume)
	assert.Equal(t, 3000.0, snap.Coins[1].CurrentPrice)
	assert.Equal(t, 1.0, snap.Coins[2].CurrentPrice)
	assert.Equal(t, 50000.0, snap.Coins[3].CurrentPrice)

	assert.Equal(t, FavoritesContext, view.Status().Context)
	assert.ElementsMatch(t, []string{"btcusdt@ticker", "ethusdt@ticker"}, view.Status().Streams)
}

func TestFavoritesView_TickerUpdatesOnlyMatchingCoins(t *testing.T) {
	stream := &fakeStreamAPI{}
	sink := NewChanSink(16)
	view := NewFavoritesView(stream, &fakeSyncAPI{}, nil, ManagerConfig{}, sink)
	defer view.Close()
	require.NoError(t, view.SetCoins(context.Background(), "alice", favoriteCoins()))
	before := view.Snapshot()

	stream.last().emit(&domain.TickerEvent{Ticker: domain.TickerSnapshot{
		Symbol:             "ETHUSDT",
		LastPrice:          "3100.5",
		PriceChange:        "100.5",
		PriceChangePercent: "3.35",
		QuoteVolume:        "not-a-number",
	}})

	after := view.Snapshot()
	assert.Equal(t, 3100.5, after.Coins[1].CurrentPrice)
	assert.Equal(t, 100.5, after.Coins[1].PriceChange24h)
	assert.Equal(t, 0.0, after.Coins[1].TotalVolume)
	assert.Equal(t, before.Coins[0], after.Coins[0])
	assert.Equal(t, before.Coins[3], after.Coins[3])

	// published snapshots are never modified in place
	assert.Equal(t, 2.0, before.Coins[1].CurrentPrice)

	upd := <-sink.C()
	assert.Equal(t, FavoritesContext, upd.Context)
	assert.Equal(t, "ETHUSDT", upd.Symbol)
	require.Len(t, upd.Coins, 1)
	assert.Equal(t, "ethereum", upd.Coins[0].ID)
}

func TestFavoritesView_DuplicateSymbolsShareOneStream(t *testing.T) {
	stream := &fakeStreamAPI{}
	view := NewFavoritesView(stream, &fakeSyncAPI{}, nil, ManagerConfig{}, nil)
	defer view.Close()
	require.NoError(t, view.SetCoins(context.Background(), "alice", favoriteCoins()))

	stream.last().emit(&domain.TickerEvent{Ticker: domain.TickerSnapshot{Symbol: "BTCUSDT", LastPrice: "42"}})

	snap := view.Snapshot()
	assert.Equal(t, 42.0, snap.Coins[0].CurrentPrice)
	assert.Equal(t, 42.0, snap.Coins[3].CurrentPrice)
	assert.Equal(t, 2.0, snap.Coins[1].CurrentPrice)
}

func TestFavoritesView_SwitchFromThreeSymbolsToOne(t *testing.T) {
	stream := &fakeStreamAPI{}
	view := NewFavoritesView(stream, &fakeSyncAPI{}, nil, ManagerConfig{}, nil)
	defer view.Close()

	require.NoError(t, view.SetCoins(context.Background(), "alice", []domain.CoinEntity{
		{ID: "bitcoin", Symbol: "btc"},
		{ID: "ethereum", Symbol: "eth"},
		{ID: "solana", Symbol: "sol"},
	}))
	old := stream.last()
	assert.Len(t, old.Streams(), 3)

	require.NoError(t, view.SetCoins(context.Background(), "bob", []domain.CoinEntity{
		{ID: "ripple", Symbol: "xrp"},
	}))
	current := stream.last()
	require.True(t, current.emit(&domain.TickerEvent{Ticker: domain.TickerSnapshot{Symbol: "XRPUSDT", LastPrice: "0.6"}}))

	assert.Equal(t, []string{
		"open:conn-1",
		"close:conn-1",
		"open:conn-2",
		"event:conn-2",
	}, stream.journal.list())
	assert.Equal(t, []string{"xrpusdt@ticker"}, current.Streams())

	old.cb.OnTicker(&domain.TickerEvent{Ticker: domain.TickerSnapshot{Symbol: "BTCUSDT", LastPrice: "1"}})
	snap := view.Snapshot()
	assert.Equal(t, "bob", snap.UserID)
	require.Len(t, snap.Coins, 1)
	assert.Equal(t, 0.6, snap.Coins[0].CurrentPrice)
}

func TestFavoritesView_EmptyListDoesNotConnect(t *testing.T) {
	stream := &fakeStreamAPI{}
	view := NewFavoritesView(stream, &fakeSyncAPI{}, nil, ManagerConfig{}, nil)
	defer view.Close()

	require.NoError(t, view.SetCoins(context.Background(), "alice", []domain.CoinEntity{{ID: "tether", Symbol: "usdt"}}))

	assert.Zero(t, stream.count())
	assert.Equal(t, domain.StateIdle, view.Status().State)
	assert.Equal(t, []string{"tether"}, view.Snapshot().Skipped)
}

func TestFavoritesView_LoadUser(t *testing.T) {
	store := NewMemoryFavoritesStore()
	store.Set("alice", []domain.CoinEntity{{ID: "bitcoin", Symbol: "btc"}})

	stream := &fakeStreamAPI{}
	view := NewFavoritesView(stream, &fakeSyncAPI{}, store, ManagerConfig{}, nil)
	defer view.Close()

	require.NoError(t, view.LoadUser(context.Background(), "alice"))
	assert.Equal(t, 1, stream.count())

	err := view.LoadUser(context.Background(), "mallory")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, 1, stream.count())
}

func TestFavoritesView_BaselineError(t *testing.T) {
	stream := &fakeStreamAPI{}
	syncAPI := &fakeSyncAPI{err: errors.New("rate limited")}
	view := NewFavoritesView(stream, syncAPI, nil, ManagerConfig{}, nil)
	defer view.Close()

	err := view.SetCoins(context.Background(), "alice", favoriteCoins())

	assert.EqualError(t, err, "rate limited")
	assert.Zero(t, stream.count())
}

func TestFileFavoritesStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "favorites.yaml")
	doc := `users:
  alice:
    - id: bitcoin
      symbol: btc
      name: Bitcoin
      current_price: 50000
    - id: ethereum
      symbol: eth
      name: Ethereum
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	store := NewFileFavoritesStore(path)

	tests := []struct {
		name    string
		userID  string
		wantIDs []string
		wantErr error
	}{
		{name: "known user", userID: "alice", wantIDs: []string{"bitcoin", "ethereum"}},
		{name: "unknown user", userID: "bob", wantErr: ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coins, err := store.FavoriteCoins(context.Background(), tt.userID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			ids := make([]string, len(coins))
			for i, c := range coins {
				ids[i] = c.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, 50000.0, coins[0].CurrentPrice)
		})
	}
}

func TestFileFavoritesStore_MissingFile(t *testing.T) {
	store := NewFileFavoritesStore(filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := store.FavoriteCoins(context.Background(), "alice")

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFavoritesView_TickerAfterBaseline(t *testing.T) {
	stream := &fakeStreamAPI{}
	syncAPI := &fakeSyncAPI{
		tickers: []domain.TickerSnapshot{{Symbol: "BTCUSDT", LastPrice: "50000.00"}},
	}
	view := NewFavoritesView(stream, syncAPI, nil, ManagerConfig{}, nil)
	defer view.Close()

	coin := domain.CoinEntity{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", Image: "btc.png", MarketCapRank: 1, High24h: 51000}
	require.NoError(t, view.SetCoins(context.Background(), "alice", []domain.CoinEntity{coin}))
	assert.Equal(t, 50000.0, view.Snapshot().Coins[0].CurrentPrice)

	stream.last().emit(&domain.TickerEvent{Ticker: domain.TickerSnapshot{Symbol: "BTCUSDT", LastPrice: "50125.30"}})

	got := view.Snapshot().Coins[0]
	assert.Equal(t, 50125.30, got.CurrentPrice)
	assert.Equal(t, coin.Name, got.Name)
	assert.Equal(t, coin.Image, got.Image)
	assert.Equal(t, coin.MarketCapRank, got.MarketCapRank)
	assert.Equal(t, coin.High24h, got.High24h)
}
