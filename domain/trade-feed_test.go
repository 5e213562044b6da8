package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func trade(id int64) Trade {
	return Trade{ID: id, Symbol: "BTCUSDT", Price: "100", Quantity: "1", QuoteQuantity: "100"}
}

func TestTradeRing_CapacityAndOrder(t *testing.T) {
	r := NewTradeRing(TradeFeedCapacity, false)

	for i := int64(1); i <= 45; i++ {
		assert.True(t, r.Push(trade(i)))

		feed := r.Snapshot()
		assert.LessOrEqual(t, len(feed), TradeFeedCapacity)
		assert.Equal(t, i, feed[0].ID, "most recent trade must be first")
	}

	feed := r.Snapshot()
	assert.Len(t, feed, TradeFeedCapacity)
	assert.Equal(t, int64(45), feed[0].ID)
	assert.Equal(t, int64(26), feed[len(feed)-1].ID, "oldest trades should be evicted")
}

func TestTradeRing_ArrivalOrderNotSorted(t *testing.T) {
	r := NewTradeRing(5, false)

	r.Push(trade(10))
	r.Push(trade(8))
	r.Push(trade(9))

	ids := []int64{}
	for _, tr := range r.Snapshot() {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []int64{9, 8, 10}, ids)
}

func TestTradeRing_Dedupe(t *testing.T) {
	tests := []struct {
		name     string
		dedupe   bool
		expected int
	}{
		{"WithoutDedupe", false, 3},
		{"WithDedupe", true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewTradeRing(5, tt.dedupe)
			r.Push(trade(1))
			r.Push(trade(2))
			r.Push(trade(2))

			assert.Equal(t, tt.expected, r.Len())
		})
	}
}

func TestTradeRing_DedupeForgetsEvicted(t *testing.T) {
	r := NewTradeRing(2, true)
	r.Push(trade(1))
	r.Push(trade(2))
	r.Push(trade(3)) // evicts 1

	assert.True(t, r.Push(trade(1)), "evicted id can be inserted again")
	assert.False(t, r.Push(trade(3)))
}

func TestTradeRing_SeedKeepsNewestFirst(t *testing.T) {
	r := NewTradeRing(3, false)
	r.Seed([]Trade{trade(1), trade(2), trade(3), trade(4)})

	feed := r.Snapshot()
	assert.Equal(t, []int64{4, 3, 2}, []int64{feed[0].ID, feed[1].ID, feed[2].ID})
}

func TestTradeRing_SnapshotIsIndependent(t *testing.T) {
	r := NewTradeRing(3, false)
	r.Push(trade(1))

	feed := r.Snapshot()
	r.Push(trade(2))

	assert.Len(t, feed, 1)
	assert.Equal(t, int64(1), feed[0].ID)
}

func TestTradeFeed_Push(t *testing.T) {
	var feed TradeFeed
	for i := int64(1); i <= 30; i++ {
		prev := feed
		feed = feed.Push(trade(i))

		assert.Equal(t, i, feed[0].ID)
		assert.LessOrEqual(t, len(feed), TradeFeedCapacity)
		if len(prev) > 0 {
			assert.Equal(t, i-1, prev[0].ID, "previous feed must not change")
		}
	}
	assert.Len(t, feed, TradeFeedCapacity)
	assert.Equal(t, int64(11), feed[TradeFeedCapacity-1].ID)
}
