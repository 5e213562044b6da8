package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/spooky-finn/marketsync/config"
	"github.com/spooky-finn/marketsync/domain"
	"github.com/spooky-finn/marketsync/helpers"
	"github.com/spooky-finn/marketsync/infrastructure/logger"
	promclient "github.com/spooky-finn/marketsync/infrastructure/prometheus"
)

const binanceDefaultRestEndpoint = "https://api.binance.com/api/v3"

const (
	ResourceTicker = "ticker"
	ResourceDepth  = "depth"
	ResourceTrades = "trades"
)

var restLogger = logger.WithComponent("binance-sync-api")

// APIError is the exchange error body, e.g. {"code":-1121,"msg":"Invalid symbol."}.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error %d: %s", e.Code, e.Msg)
}

type SyncAPIConfig struct {
	BaseURL   string
	RateLimit float64
	Burst     int
	Timeout   time.Duration
}

func SyncAPIConfigFrom(cfg *config.Config) SyncAPIConfig {
	return SyncAPIConfig{
		BaseURL:   cfg.RestURL,
		RateLimit: cfg.RestRateLimit,
		Burst:     cfg.RestBurst,
		Timeout:   cfg.RestTimeout,
	}
}

// BinanceSyncAPI fetches REST baselines. Calls share one rate limiter.
type BinanceSyncAPI struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewBinanceAPI(cfg SyncAPIConfig) *BinanceSyncAPI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = binanceDefaultRestEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &BinanceSyncAPI{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
}

func (api *BinanceSyncAPI) Ticker(ctx context.Context, symbol *domain.MarketSymbol) (*domain.TickerSnapshot, error) {
	var ticker domain.TickerSnapshot
	params := url.Values{"symbol": {symbol.Pair()}}
	if err := api.get(ctx, "/ticker/24hr", params, symbol.Pair(), ResourceTicker, &ticker); err != nil {
		return nil, err
	}
	return &ticker, nil
}

// AllTickers returns the 24h statistics of every market.
func (api *BinanceSyncAPI) AllTickers(ctx context.Context) ([]domain.TickerSnapshot, error) {
	var tickers []domain.TickerSnapshot
	if err := api.get(ctx, "/ticker/24hr", nil, "*", ResourceTicker, &tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}

func (api *BinanceSyncAPI) OrderBookSnapshot(ctx context.Context, symbol *domain.MarketSymbol, limit int) (*domain.OrderBookState, error) {
	var snapshot struct {
		LastUpdateId int64               `json:"lastUpdateId"`
		Bids         []domain.PriceLevel `json:"bids"`
		Asks         []domain.PriceLevel `json:"asks"`
	}
	params := url.Values{
		"symbol": {symbol.Pair()},
		"limit":  {helpers.IntToString(int64(limit))},
	}
	if err := api.get(ctx, "/depth", params, symbol.Pair(), ResourceDepth, &snapshot); err != nil {
		return nil, err
	}

	return domain.NewOrderBookState(symbol.Pair(), snapshot.LastUpdateId, snapshot.Bids, snapshot.Asks), nil
}

// RecentTrades returns the latest trades, oldest first.
func (api *BinanceSyncAPI) RecentTrades(ctx context.Context, symbol *domain.MarketSymbol, limit int) ([]domain.Trade, error) {
	var trades []domain.Trade
	params := url.Values{
		"symbol": {symbol.Pair()},
		"limit":  {helpers.IntToString(int64(limit))},
	}
	if err := api.get(ctx, "/trades", params, symbol.Pair(), ResourceTrades, &trades); err != nil {
		return nil, err
	}

	for i := range trades {
		trades[i].Symbol = symbol.Pair()
	}
	return trades, nil
}

func (api *BinanceSyncAPI) get(ctx context.Context, path string, params url.Values, symbol, resource string, out any) error {
	fail := func(status int, err error) error {
		return &domain.BaselineFetchError{Symbol: symbol, Resource: resource, Status: status, Err: err}
	}

	if err := api.limiter.Wait(ctx); err != nil {
		return fail(0, err)
	}

	endpoint := api.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fail(0, err)
	}

	start := time.Now()
	resp, err := api.client.Do(req)
	promclient.BaselineFetchSeconds.WithLabelValues(resource).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		restLogger.WithField("status", resp.StatusCode).WithField("path", path).Warn("baseline request failed")
		return fail(resp.StatusCode, parseAPIError(resp.StatusCode, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode %s response: %w", resource, err))
	}
	return nil
}

func parseAPIError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Msg != "" {
		return &apiErr
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Errorf("unexpected status %d", status)
	}
	return fmt.Errorf("unexpected status %d: %s", status, trimmed)
}
