package domain

import "github.com/shopspring/decimal"

// CoinEntity is the caller-owned aggregate shown in coin lists.
type CoinEntity struct {
	ID                       string  `json:"id" yaml:"id"`
	Symbol                   string  `json:"symbol" yaml:"symbol"`
	Name                     string  `json:"name" yaml:"name"`
	Image                    string  `json:"image,omitempty" yaml:"image,omitempty"`
	MarketCapRank            int     `json:"market_cap_rank,omitempty" yaml:"market_cap_rank,omitempty"`
	MarketCap                float64 `json:"market_cap" yaml:"market_cap"`
	CurrentPrice             float64 `json:"current_price" yaml:"current_price"`
	PriceChange24h           float64 `json:"price_change_24h" yaml:"price_change_24h"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h" yaml:"price_change_percentage_24h"`
	TotalVolume              float64 `json:"total_volume" yaml:"total_volume"`
	High24h                  float64 `json:"high_24h" yaml:"high_24h"`
	Low24h                   float64 `json:"low_24h" yaml:"low_24h"`
}

// ProjectTicker returns a copy of entity with price, 24h change, 24h change
// percent and volume taken from the ticker. TotalVolume is quote denominated.
// A field whose ticker value does not parse keeps the entity value.
func ProjectTicker(entity CoinEntity, ev *TickerEvent) CoinEntity {
	if ev == nil {
		return entity
	}
	next := entity
	next.CurrentPrice = parseOr(ev.Ticker.LastPrice, entity.CurrentPrice)
	next.PriceChange24h = parseOr(ev.Ticker.PriceChange, entity.PriceChange24h)
	next.PriceChangePercentage24h = parseOr(ev.Ticker.PriceChangePercent, entity.PriceChangePercentage24h)
	next.TotalVolume = parseOr(ev.Ticker.QuoteVolume, entity.TotalVolume)
	return next
}

func parseOr(s string, fallback float64) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fallback
	}
	return d.InexactFloat64()
}
