package domain

import (
	"errors"
	"strings"
)

var ErrSymbolNotIndexed = errors.New("symbol is not indexed")

// CoinIndex maps exchange pairs to the positions of the coins they feed.
// Several coins may share one pair, e.g. two entries for the same ticker.
type CoinIndex struct {
	positions map[string][]int
	symbols   []*MarketSymbol
	skipped   []string
}

// BuildCoinIndex canonicalizes every coin symbol. Coins without a tradable
// pair are recorded by id in Skipped and never receive updates.
func BuildCoinIndex(coins []CoinEntity) *CoinIndex {
	idx := &CoinIndex{
		positions: make(map[string][]int, len(coins)),
	}

	for i, coin := range coins {
		symbol, err := CanonicalSymbol(coin.Symbol)
		if err != nil {
			idx.skipped = append(idx.skipped, coin.ID)
			continue
		}

		pair := symbol.Pair()
		if _, ok := idx.positions[pair]; !ok {
			idx.symbols = append(idx.symbols, symbol)
		}
		idx.positions[pair] = append(idx.positions[pair], i)
	}

	return idx
}

// Get returns the coin positions for pair, case insensitive.
func (idx *CoinIndex) Get(pair string) ([]int, error) {
	positions, ok := idx.positions[strings.ToUpper(pair)]
	if !ok {
		return nil, ErrSymbolNotIndexed
	}
	return positions, nil
}

// Symbols lists the distinct subscribable markets in coin order.
func (idx *CoinIndex) Symbols() []*MarketSymbol {
	out := make([]*MarketSymbol, len(idx.symbols))
	copy(out, idx.symbols)
	return out
}

func (idx *CoinIndex) Skipped() []string {
	return idx.skipped
}

func (idx *CoinIndex) SymbolCount() int {
	return len(idx.symbols)
}
