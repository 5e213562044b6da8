package binance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spooky-finn/marketsync/domain"
)

func TestDepthUpdateValidator(t *testing.T) {
	v := &BinanceDepthUpdateValidator{}

	upd := &domain.DepthDeltaEvent{
		Symbol:        "BTCUSDT",
		FirstUpdateID: 123,
		LastUpdateID:  124,
		Bids:          []domain.PriceLevel{{Price: "10000", Quantity: "1"}},
		Asks:          []domain.PriceLevel{{Price: "10100", Quantity: "1.5"}},
	}

	// if sequenceEnd is <= lastUpdateID, the update is outdated
	err := v.IsValidUpd(upd, 124)
	assert.Equal(t, domain.ErrOrderBookUpdateIsOutdated, err, "Error should match")
	assert.True(t, v.IsErrOutdated(err))

	// 123 <= 123+1 && 124 >= 123+1
	err = v.IsValidUpd(upd, 123)
	assert.Nil(t, err, "Error should be nil")
}

func TestDepthUpdateValidator_Table(t *testing.T) {
	v := &BinanceDepthUpdateValidator{}

	tests := []struct {
		name     string
		first    int64
		last     int64
		partial  bool
		bookID   int64
		expected error
	}{
		{"SpansSnapshot", 123, 140, false, 123, nil},
		{"NextInSequence", 124, 130, false, 123, nil},
		{"Gap", 125, 136, false, 122, domain.ErrOrderBookUpdateIsOutOfSequence},
		{"Outdated", 100, 110, false, 110, domain.ErrOrderBookUpdateIsOutdated},
		{"PartialNewer", 500, 500, true, 10, nil},
		{"PartialSame", 10, 10, true, 10, domain.ErrOrderBookUpdateIsOutdated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upd := &domain.DepthDeltaEvent{FirstUpdateID: tt.first, LastUpdateID: tt.last, Partial: tt.partial}

			err := v.IsValidUpd(upd, tt.bookID)

			assert.Equal(t, tt.expected, err)
			assert.Equal(t, tt.expected == domain.ErrOrderBookUpdateIsOutOfSequence, v.IsErrOutOfSequence(err))
		})
	}
}
