package rpc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spooky-finn/marketsync/domain"
)

const maxUserIDLength = 128

var (
	ErrUnknownContext      = errors.New("unknown subscription context")
	ErrInvalidSymbol       = errors.New("invalid market symbol")
	ErrInvalidUserID       = errors.New("invalid user id")
	ErrUnsupportedProvider = errors.New("provider is not supported")
)

type ValidationServiceConfig struct {
	AvailableProviders []string
}

type ValidationService struct {
	config *ValidationServiceConfig
}

func NewValidationService(config *ValidationServiceConfig) *ValidationService {
	return &ValidationService{
		config: config,
	}
}

// IsSupportedProvider treats an empty provider as the first available one.
func (s *ValidationService) IsSupportedProvider(provider string) bool {
	if provider == "" {
		return len(s.config.AvailableProviders) > 0
	}
	for _, p := range s.config.AvailableProviders {
		if strings.EqualFold(p, provider) {
			return true
		}
	}
	return false
}

// ParseSymbol accepts "BTCUSDT" and "btc_usdt".
func (s *ValidationService) ParseSymbol(raw string) (*domain.MarketSymbol, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidSymbol)
	}

	var (
		symbol *domain.MarketSymbol
		err    error
	)
	if strings.Contains(raw, "_") {
		symbol, err = domain.NewMarketSymbolFromString(raw)
	} else {
		symbol, err = domain.ParsePair(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrInvalidSymbol, raw, err)
	}
	return symbol, nil
}

func (s *ValidationService) ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidUserID)
	}
	if len(userID) > maxUserIDLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidUserID, maxUserIDLength)
	}
	return nil
}
