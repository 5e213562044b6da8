package binance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/spooky-finn/marketsync/domain"
)

// Message is the combined stream envelope.
type Message[T any] struct {
	Stream string `json:"stream"`
	Data   T      `json:"data"`
}

type TickerData struct {
	Event              string `json:"e"`
	EventTime          int64  `json:"E"`
	Symbol             string `json:"s"`
	PriceChange        string `json:"p"`
	PriceChangePercent string `json:"P"`
	WeightedAvgPrice   string `json:"w"`
	PrevClosePrice     string `json:"x"`
	LastPrice          string `json:"c"`
	LastQty            string `json:"Q"`
	BidPrice           string `json:"b"`
	BidQty             string `json:"B"`
	AskPrice           string `json:"a"`
	AskQty             string `json:"A"`
	OpenPrice          string `json:"o"`
	HighPrice          string `json:"h"`
	LowPrice           string `json:"l"`
	Volume             string `json:"v"`
	QuoteVolume        string `json:"q"`
	OpenTime           int64  `json:"O"`
	CloseTime          int64  `json:"C"`
	FirstID            int64  `json:"F"`
	LastID             int64  `json:"L"`
	Count              int64  `json:"n"`
}

// DepthUpdateData covers both depth payloads: the diff stream
// (e=depthUpdate, U/u/b/a) and the partial book stream (lastUpdateId/bids/asks).
type DepthUpdateData struct {
	Event         string              `json:"e"`
	EventTime     int64               `json:"E"`
	Symbol        string              `json:"s"`
	FirstUpdateId *int64              `json:"U"`
	FinalUpdateId *int64              `json:"u"`
	Bids          []domain.PriceLevel `json:"b"`
	Asks          []domain.PriceLevel `json:"a"`

	LastUpdateId *int64              `json:"lastUpdateId"`
	PartialBids  []domain.PriceLevel `json:"bids"`
	PartialAsks  []domain.PriceLevel `json:"asks"`
}

type TradeData struct {
	Event         string `json:"e"`
	EventTime     int64  `json:"E"`
	Symbol        string `json:"s"`
	TradeID       *int64 `json:"t"`
	Price         string `json:"p"`
	Quantity      string `json:"q"`
	TradeTime     int64  `json:"T"`
	IsBuyerMaker  bool   `json:"m"`
	IsBestMatch   bool   `json:"M"`
	QuoteQuantity string `json:"quoteQty,omitempty"`
}

var errMissingField = errors.New("missing required field")

// DecodeFrame turns one combined stream message into a domain event.
// Frames of unknown streams, subscription acks included, come back as
// *domain.UnrecognizedEvent. Malformed payloads fail with *domain.DecodeError.
func DecodeFrame(raw []byte) (domain.Event, error) {
	var msg Message[json.RawMessage]
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, &domain.DecodeError{Err: err}
	}
	if msg.Stream == "" {
		return &domain.UnrecognizedEvent{}, nil
	}

	symbol, kind := splitStream(msg.Stream)
	var (
		ev  domain.Event
		err error
	)
	switch kind {
	case domain.StreamTicker:
		ev, err = decodeTicker(msg.Data)
	case domain.StreamDepth:
		ev, err = decodeDepth(msg.Data, symbol)
	case domain.StreamTrade:
		ev, err = decodeTrade(msg.Data)
	default:
		return &domain.UnrecognizedEvent{Stream: msg.Stream}, nil
	}
	if err != nil {
		return nil, &domain.DecodeError{Stream: msg.Stream, Err: err}
	}
	return ev, nil
}

// splitStream maps "btcusdt@depth20@100ms" to ("BTCUSDT", depth).
// An empty kind means the stream is not handled.
func splitStream(stream string) (string, domain.StreamKind) {
	symbol, rest, ok := strings.Cut(stream, "@")
	if !ok {
		return "", ""
	}
	name, _, _ := strings.Cut(rest, "@")

	var kind domain.StreamKind
	switch {
	case name == "ticker":
		kind = domain.StreamTicker
	case name == "trade":
		kind = domain.StreamTrade
	case strings.HasPrefix(name, "depth"):
		kind = domain.StreamDepth
	}
	return strings.ToUpper(symbol), kind
}

func decodeTicker(data json.RawMessage) (*domain.TickerEvent, error) {
	var t TickerData
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.Symbol == "" {
		return nil, fmt.Errorf("%w: s", errMissingField)
	}
	required := []struct{ key, value string }{
		{"c", t.LastPrice},
		{"p", t.PriceChange},
		{"P", t.PriceChangePercent},
		{"v", t.Volume},
		{"q", t.QuoteVolume},
	}
	for _, f := range required {
		if err := requireDecimal(f.key, f.value); err != nil {
			return nil, err
		}
	}
	optional := []struct{ key, value string }{
		{"w", t.WeightedAvgPrice}, {"x", t.PrevClosePrice}, {"Q", t.LastQty},
		{"b", t.BidPrice}, {"B", t.BidQty}, {"a", t.AskPrice}, {"A", t.AskQty},
		{"o", t.OpenPrice}, {"h", t.HighPrice}, {"l", t.LowPrice},
	}
	for _, f := range optional {
		if f.value == "" {
			continue
		}
		if err := requireDecimal(f.key, f.value); err != nil {
			return nil, err
		}
	}

	return &domain.TickerEvent{
		EventTime: t.EventTime,
		Ticker: domain.TickerSnapshot{
			Symbol:             t.Symbol,
			PriceChange:        t.PriceChange,
			PriceChangePercent: t.PriceChangePercent,
			WeightedAvgPrice:   t.WeightedAvgPrice,
			PrevClosePrice:     t.PrevClosePrice,
			LastPrice:          t.LastPrice,
			LastQty:            t.LastQty,
			BidPrice:           t.BidPrice,
			BidQty:             t.BidQty,
			AskPrice:           t.AskPrice,
			AskQty:             t.AskQty,
			OpenPrice:          t.OpenPrice,
			HighPrice:          t.HighPrice,
			LowPrice:           t.LowPrice,
			Volume:             t.Volume,
			QuoteVolume:        t.QuoteVolume,
			OpenTime:           t.OpenTime,
			CloseTime:          t.CloseTime,
			FirstID:            t.FirstID,
			LastID:             t.LastID,
			Count:              t.Count,
		},
	}, nil
}

// decodeDepth takes the symbol from the stream name because partial book
// payloads do not carry one.
func decodeDepth(data json.RawMessage, streamSymbol string) (*domain.DepthDeltaEvent, error) {
	var d DepthUpdateData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}

	if d.Event == "depthUpdate" {
		if d.FirstUpdateId == nil || d.FinalUpdateId == nil {
			return nil, fmt.Errorf("%w: U/u", errMissingField)
		}
		symbol := d.Symbol
		if symbol == "" {
			symbol = streamSymbol
		}
		return &domain.DepthDeltaEvent{
			Symbol:        symbol,
			EventTime:     d.EventTime,
			FirstUpdateID: *d.FirstUpdateId,
			LastUpdateID:  *d.FinalUpdateId,
			Bids:          d.Bids,
			Asks:          d.Asks,
		}, nil
	}

	if d.LastUpdateId == nil {
		return nil, fmt.Errorf("%w: lastUpdateId", errMissingField)
	}
	return &domain.DepthDeltaEvent{
		Symbol:        streamSymbol,
		FirstUpdateID: *d.LastUpdateId,
		LastUpdateID:  *d.LastUpdateId,
		Bids:          d.PartialBids,
		Asks:          d.PartialAsks,
		Partial:       true,
	}, nil
}

func decodeTrade(data json.RawMessage) (*domain.TradeEvent, error) {
	var t TradeData
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.Symbol == "" {
		return nil, fmt.Errorf("%w: s", errMissingField)
	}
	if t.TradeID == nil {
		return nil, fmt.Errorf("%w: t", errMissingField)
	}
	price, err := parseDecimal("p", t.Price)
	if err != nil {
		return nil, err
	}
	qty, err := parseDecimal("q", t.Quantity)
	if err != nil {
		return nil, err
	}

	quoteQty := t.QuoteQuantity
	if quoteQty == "" {
		quoteQty = price.Mul(qty).String()
	}

	return &domain.TradeEvent{
		EventTime: t.EventTime,
		Trade: domain.Trade{
			ID:            *t.TradeID,
			Symbol:        t.Symbol,
			Price:         t.Price,
			Quantity:      t.Quantity,
			QuoteQuantity: quoteQty,
			Time:          t.TradeTime,
			IsBuyerMaker:  t.IsBuyerMaker,
			IsBestMatch:   t.IsBestMatch,
		},
	}, nil
}

func parseDecimal(key, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", errMissingField, key)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("field %s: %q is not a decimal", key, value)
	}
	return d, nil
}

func requireDecimal(key, value string) error {
	_, err := parseDecimal(key, value)
	return err
}
