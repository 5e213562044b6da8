package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/spooky-finn/marketsync/config"
	"github.com/spooky-finn/marketsync/domain"
	"github.com/spooky-finn/marketsync/infrastructure/logger"
	"github.com/spooky-finn/marketsync/provider/binance"
)

const Binance = "binance"

var ErrUnsupportedProvider = errors.New("provider is not supported")

var _ domain.ConnManager = (*ConnectionManager)(nil)

// ConnectionManager owns the exchange clients. Connections themselves are
// opened per subscription by the stream API.
type ConnectionManager struct {
	BinanceStreamAPI *binance.BinanceStreamClient
	BinanceSyncAPI   *binance.BinanceSyncAPI

	log *logrus.Entry
}

func NewConnectionManager(cfg *config.Config) *ConnectionManager {
	cm := &ConnectionManager{
		BinanceStreamAPI: binance.NewBinanceStreamClient(binance.StreamClientConfigFrom(cfg)),
		BinanceSyncAPI:   binance.NewBinanceAPI(binance.SyncAPIConfigFrom(cfg)),
		log:              logger.WithComponent("conn-manager"),
	}
	cm.log.WithFields(logrus.Fields{
		"stream": cfg.StreamURL,
		"rest":   cfg.RestURL,
	}).Info("binance clients configured")
	return cm
}

func (cm *ConnectionManager) Providers() []string {
	return []string{Binance}
}

func (cm *ConnectionManager) StreamAPI(provider string) (domain.ProviderStreamAPI, error) {
	switch normalize(provider) {
	case Binance:
		return cm.BinanceStreamAPI, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
}

func (cm *ConnectionManager) SyncAPI(provider string) (domain.ProviderSyncAPI, error) {
	switch normalize(provider) {
	case Binance:
		return cm.BinanceSyncAPI, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
}

func (cm *ConnectionManager) DepthValidator(provider string) (domain.DepthUpdateValidator, error) {
	switch normalize(provider) {
	case Binance:
		return &binance.BinanceDepthUpdateValidator{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
