package binance

import (
	"errors"

	"github.com/spooky-finn/marketsync/domain"
)

type BinanceDepthUpdateValidator struct{}

func (v *BinanceDepthUpdateValidator) IsValidUpd(update *domain.DepthDeltaEvent, orderBookLastUpdId int64) error {
	// Drop any event where u is <= lastUpdateId in the snapshot
	if update.LastUpdateID <= orderBookLastUpdId {
		return domain.ErrOrderBookUpdateIsOutdated
	}

	// Partial books carry a single id and replace the levels they hold
	if update.Partial {
		return nil
	}

	// The first processed event should have U <= lastUpdateId+1 AND u >= lastUpdateId+1,
	// every later one has U == previous u+1 which satisfies the same check
	if update.FirstUpdateID <= orderBookLastUpdId+1 {
		return nil
	}

	return domain.ErrOrderBookUpdateIsOutOfSequence
}

func (v *BinanceDepthUpdateValidator) IsErrOutOfSequence(err error) bool {
	return errors.Is(err, domain.ErrOrderBookUpdateIsOutOfSequence)
}

func (v *BinanceDepthUpdateValidator) IsErrOutdated(err error) bool {
	return errors.Is(err, domain.ErrOrderBookUpdateIsOutdated)
}
