package domain

import (
	"errors"
	"fmt"
	"strings"
)

const DefaultQuoteAsset = "usdt"

var ErrNoTradablePair = errors.New("coin has no tradable pair")

// Coins that are quote assets themselves have no <COIN>USDT market.
var quoteOnlyAssets = map[string]struct{}{
	"usdt": {}, "usdc": {}, "busd": {}, "fdusd": {}, "tusd": {}, "dai": {},
}

// Longest first so that "FDUSD" wins over "USD"-like tails.
var knownQuoteAssets = []string{"fdusd", "usdt", "usdc", "busd", "tusd", "try", "eur", "btc", "eth", "bnb"}

type MarketSymbol struct {
	BaseAsset  string
	QuoteAsset string
}

func NewMarketSymbol(base string, quote string) (*MarketSymbol, error) {
	base = strings.ToLower(strings.TrimSpace(base))
	quote = strings.ToLower(strings.TrimSpace(quote))
	if base == "" || quote == "" {
		return nil, fmt.Errorf("base and quote must not be empty")
	}
	if base == quote {
		return nil, fmt.Errorf("base and quote must be different")
	}
	return &MarketSymbol{
		BaseAsset:  base,
		QuoteAsset: quote,
	}, nil
}

func NewMarketSymbolFromString(s string) (*MarketSymbol, error) {
	split := strings.Split(s, "_")

	if len(split) != 2 {
		return nil, fmt.Errorf("invalid symbol string")
	}

	return NewMarketSymbol(split[0], split[1])
}

// ParsePair splits an exchange pair such as "BTCUSDT" by its quote suffix.
func ParsePair(pair string) (*MarketSymbol, error) {
	p := strings.ToLower(strings.TrimSpace(pair))
	for _, quote := range knownQuoteAssets {
		if strings.HasSuffix(p, quote) && len(p) > len(quote) {
			return NewMarketSymbol(strings.TrimSuffix(p, quote), quote)
		}
	}
	return nil, fmt.Errorf("unknown quote asset in pair %q", pair)
}

// CanonicalSymbol maps a coin ticker ("btc") to its exchange market ("BTCUSDT").
// Callers must drop coins for which ErrNoTradablePair is returned before subscribing.
func CanonicalSymbol(coinSymbol string) (*MarketSymbol, error) {
	base := strings.ToLower(strings.TrimSpace(coinSymbol))
	if base == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrNoTradablePair)
	}
	if _, ok := quoteOnlyAssets[base]; ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTradablePair, base)
	}
	return NewMarketSymbol(base, DefaultQuoteAsset)
}

func (ms *MarketSymbol) Join(separator string) string {
	return fmt.Sprintf("%s%s%s", ms.BaseAsset, separator, ms.QuoteAsset)
}

func (ms *MarketSymbol) String() string {
	return fmt.Sprintf("%s_%s", ms.BaseAsset, ms.QuoteAsset)
}

// Pair is the REST representation, e.g. "BTCUSDT".
func (ms *MarketSymbol) Pair() string {
	return strings.ToUpper(ms.Join(""))
}

// StreamName builds a combined-stream name, e.g. "btcusdt@ticker".
func (ms *MarketSymbol) StreamName(suffix string) string {
	return fmt.Sprintf("%s@%s", ms.Join(""), suffix)
}

func (ms *MarketSymbol) Equal(other *MarketSymbol) bool {
	if other == nil {
		return false
	}
	return ms.BaseAsset == other.BaseAsset && ms.QuoteAsset == other.QuoteAsset
}
