package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func btcEntity() CoinEntity {
	return CoinEntity{
		ID:                       "bitcoin",
		Symbol:                   "btc",
		Name:                     "Bitcoin",
		Image:                    "https://img/btc.png",
		MarketCapRank:            1,
		MarketCap:                1e12,
		CurrentPrice:             50000,
		PriceChange24h:           100,
		PriceChangePercentage24h: 0.2,
		TotalVolume:              1000,
		High24h:                  51000,
		Low24h:                   49000,
	}
}

func tickerEvent(last, change, percent, quoteVolume string) *TickerEvent {
	return &TickerEvent{Ticker: TickerSnapshot{
		Symbol:             "BTCUSDT",
		LastPrice:          last,
		PriceChange:        change,
		PriceChangePercent: percent,
		Volume:             "12.5",
		QuoteVolume:        quoteVolume,
		HighPrice:          "99999",
		LowPrice:           "1",
	}}
}

func TestProjectTicker_UpdatesOnlyMarketFields(t *testing.T) {
	before := btcEntity()

	after := ProjectTicker(before, tickerEvent("50125.30", "125.30", "0.251", "625000.5"))

	assert.Equal(t, 50125.30, after.CurrentPrice)
	assert.Equal(t, 125.30, after.PriceChange24h)
	assert.Equal(t, 0.251, after.PriceChangePercentage24h)
	assert.Equal(t, 625000.5, after.TotalVolume)

	expected := before
	expected.CurrentPrice = after.CurrentPrice
	expected.PriceChange24h = after.PriceChange24h
	expected.PriceChangePercentage24h = after.PriceChangePercentage24h
	expected.TotalVolume = after.TotalVolume
	assert.Equal(t, expected, after, "all other fields must pass through")

	assert.Equal(t, 50000.0, before.CurrentPrice, "input entity must not change")
}

func TestProjectTicker_UnparsableFieldKeepsValue(t *testing.T) {
	before := btcEntity()

	after := ProjectTicker(before, tickerEvent("oops", "-5", "-0.01", ""))

	assert.Equal(t, before.CurrentPrice, after.CurrentPrice)
	assert.Equal(t, -5.0, after.PriceChange24h)
	assert.Equal(t, before.TotalVolume, after.TotalVolume)
}

func TestProjectTicker_NilEvent(t *testing.T) {
	assert.Equal(t, btcEntity(), ProjectTicker(btcEntity(), nil))
}
