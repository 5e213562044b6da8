package binance

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/spooky-finn/marketsync/config"
	"github.com/spooky-finn/marketsync/domain"
	"github.com/spooky-finn/marketsync/infrastructure/logger"
	promclient "github.com/spooky-finn/marketsync/infrastructure/prometheus"
)

const (
	binanceDefaultWebsocketEndpoint = "wss://stream.binance.com:9443/stream"
	defaultDepthStream              = "depth20@100ms"
	closeWriteWait                  = time.Second
)

var streamLogger = logger.WithComponent("binance-stream-client")

type StreamClientConfig struct {
	Endpoint         string
	DepthStream      string
	HandshakeTimeout time.Duration
	// ReadTimeout closes a silent connection with a TransportError. Zero disables it.
	ReadTimeout time.Duration
}

func StreamClientConfigFrom(cfg *config.Config) StreamClientConfig {
	return StreamClientConfig{
		Endpoint:         cfg.StreamURL,
		DepthStream:      cfg.DepthStream,
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadTimeout:      cfg.ReadTimeout,
	}
}

// BinanceStreamClient opens combined stream connections. Each Open call
// produces an independent ConnectionHandle.
type BinanceStreamClient struct {
	cfg    StreamClientConfig
	dialer *websocket.Dialer
}

func NewBinanceStreamClient(cfg StreamClientConfig) *BinanceStreamClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = binanceDefaultWebsocketEndpoint
	}
	if cfg.DepthStream == "" {
		cfg.DepthStream = defaultDepthStream
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}

	return &BinanceStreamClient{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// StreamNames lists one stream per symbol and kind, e.g. "btcusdt@trade".
func (c *BinanceStreamClient) StreamNames(symbols []*domain.MarketSymbol, kinds []domain.StreamKind) []string {
	seen := make(map[string]struct{}, len(symbols)*len(kinds))
	streams := make([]string, 0, len(symbols)*len(kinds))

	for _, symbol := range symbols {
		for _, kind := range kinds {
			suffix := string(kind)
			if kind == domain.StreamDepth {
				suffix = c.cfg.DepthStream
			}
			name := symbol.StreamName(suffix)
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			streams = append(streams, name)
		}
	}
	return streams
}

func (c *BinanceStreamClient) streamURL(streams []string) (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid stream endpoint: %w", err)
	}
	// stream names must stay unescaped, "@" and "/" are part of the syntax
	u.RawQuery = "streams=" + strings.Join(streams, "/")
	return u.String(), nil
}

// Open dials one combined stream connection for every (symbol, kind) pair
// and starts dispatching frames to callbacks.
func (c *BinanceStreamClient) Open(
	ctx context.Context,
	symbols []*domain.MarketSymbol,
	kinds []domain.StreamKind,
	callbacks domain.StreamCallbacks,
) (domain.Connection, error) {
	h := &ConnectionHandle{
		id:          uuid.NewString(),
		streams:     c.StreamNames(symbols, kinds),
		callbacks:   callbacks,
		readTimeout: c.cfg.ReadTimeout,
		done:        make(chan struct{}),
	}
	h.log = streamLogger.WithFields(logrus.Fields{"conn_id": h.id})

	if len(h.streams) == 0 {
		h.setState(domain.StateClosed)
		return nil, errors.New("no streams to subscribe to")
	}

	endpoint, err := c.streamURL(h.streams)
	if err != nil {
		return nil, err
	}

	h.setState(domain.StateConnecting)
	h.log.WithField("streams", h.streams).Info("connecting")

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		h.setState(domain.StateClosed)
		promclient.TransportErrorsTotal.Inc()
		return nil, &domain.TransportError{ConnID: h.id, Err: err}
	}

	h.conn = conn
	if h.readTimeout > 0 {
		conn.SetPingHandler(func(appData string) error {
			_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
			err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(closeWriteWait))
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return err
		})
	}

	h.setState(domain.StateOpen)
	promclient.OpenConnectionsGauge.Inc()

	go h.read()
	return h, nil
}

// ConnectionHandle is one physical multiplexed connection. Each handle is
// owned by the caller of Open and never shared.
type ConnectionHandle struct {
	id          string
	streams     []string
	conn        *websocket.Conn
	callbacks   domain.StreamCallbacks
	readTimeout time.Duration
	log         *logrus.Entry

	state atomic.Int32

	// dispatchMu serializes callbacks; Close takes it after raising closed
	// so that no callback runs once Close returns.
	dispatchMu sync.Mutex
	closed     atomic.Bool

	closeOnce   sync.Once
	releaseOnce sync.Once
	// done is closed when the reader goroutine exits.
	done chan struct{}
}

func (h *ConnectionHandle) ID() string {
	return h.id
}

func (h *ConnectionHandle) Streams() []string {
	out := make([]string, len(h.streams))
	copy(out, h.streams)
	return out
}

func (h *ConnectionHandle) State() domain.ConnState {
	return domain.ConnState(h.state.Load())
}

func (h *ConnectionHandle) setState(s domain.ConnState) {
	h.state.Store(int32(s))
}

// Close is idempotent. Once it returns no callback of this handle runs,
// frames already read included.
func (h *ConnectionHandle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		if h.State() != domain.StateClosed {
			h.setState(domain.StateClosing)
		}

		// wait for an in-flight callback
		h.dispatchMu.Lock()
		h.dispatchMu.Unlock()

		_ = h.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteWait),
		)
		err = h.conn.Close()
		<-h.done

		h.release()
		h.log.Info("closed")
	})
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (h *ConnectionHandle) release() {
	h.releaseOnce.Do(func() {
		h.setState(domain.StateClosed)
		promclient.OpenConnectionsGauge.Dec()
	})
}

func (h *ConnectionHandle) read() {
	defer close(h.done)

	for {
		if h.readTimeout > 0 {
			_ = h.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		}

		_, msg, err := h.conn.ReadMessage()
		if err != nil {
			if h.closed.Load() {
				return
			}
			h.fail(err)
			return
		}

		ev, err := DecodeFrame(msg)
		if err != nil {
			promclient.DecodeErrorsTotal.Inc()
			h.log.WithError(err).Warn("dropping malformed frame")
			continue
		}

		if config.DebugMode {
			h.log.WithField("symbol", ev.Pair()).Debugf("frame %s", ev.Kind())
		}
		h.dispatch(ev)
	}
}

func (h *ConnectionHandle) dispatch(ev domain.Event) {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	if h.closed.Load() {
		return
	}

	switch e := ev.(type) {
	case *domain.TickerEvent:
		promclient.FramesTotal.WithLabelValues(string(domain.StreamTicker)).Inc()
		if h.callbacks.OnTicker != nil {
			h.callbacks.OnTicker(e)
		}
	case *domain.DepthDeltaEvent:
		promclient.FramesTotal.WithLabelValues(string(domain.StreamDepth)).Inc()
		if h.callbacks.OnDepth != nil {
			h.callbacks.OnDepth(e)
		}
	case *domain.TradeEvent:
		promclient.FramesTotal.WithLabelValues(string(domain.StreamTrade)).Inc()
		if h.callbacks.OnTrade != nil {
			h.callbacks.OnTrade(e)
		}
	case *domain.UnrecognizedEvent:
	}
}

// fail closes the socket after a read error and reports it once.
func (h *ConnectionHandle) fail(cause error) {
	terr := &domain.TransportError{ConnID: h.id, Err: cause}
	promclient.TransportErrorsTotal.Inc()
	h.log.WithError(cause).Error("connection failed")

	h.setState(domain.StateClosing)
	_ = h.conn.Close()

	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	h.release()
	if h.closed.Load() || h.callbacks.OnError == nil {
		return
	}
	h.callbacks.OnError(terr)
}
