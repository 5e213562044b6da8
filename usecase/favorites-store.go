package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/spooky-finn/marketsync/domain"
)

var ErrUserNotFound = errors.New("user not found")

// FavoritesStore is the read-only source of a user's favorite coins.
type FavoritesStore interface {
	FavoriteCoins(ctx context.Context, userID string) ([]domain.CoinEntity, error)
}

type MemoryFavoritesStore struct {
	mu    sync.RWMutex
	users map[string][]domain.CoinEntity
}

func NewMemoryFavoritesStore() *MemoryFavoritesStore {
	return &MemoryFavoritesStore{users: make(map[string][]domain.CoinEntity)}
}

func (s *MemoryFavoritesStore) Set(userID string, coins []domain.CoinEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = append([]domain.CoinEntity(nil), coins...)
}

func (s *MemoryFavoritesStore) FavoriteCoins(_ context.Context, userID string) ([]domain.CoinEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coins, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return append([]domain.CoinEntity(nil), coins...), nil
}

type favoritesFile struct {
	Users map[string][]domain.CoinEntity `yaml:"users"`
}

// FileFavoritesStore reads a YAML document on every call:
//
//	users:
//	  alice:
//	    - id: bitcoin
//	      symbol: btc
//	      name: Bitcoin
type FileFavoritesStore struct {
	path string
}

func NewFileFavoritesStore(path string) *FileFavoritesStore {
	return &FileFavoritesStore{path: path}
}

func (s *FileFavoritesStore) FavoriteCoins(_ context.Context, userID string) ([]domain.CoinEntity, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read favorites file: %w", err)
	}

	var doc favoritesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse favorites file %s: %w", s.path, err)
	}

	coins, ok := doc.Users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return coins, nil
}
