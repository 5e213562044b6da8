package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"

	"github.com/spooky-finn/marketsync/domain"
	"github.com/spooky-finn/marketsync/infrastructure/logger"
	promclient "github.com/spooky-finn/marketsync/infrastructure/prometheus"
)

// Install applies a fetched baseline to handler state and returns the
// updates to publish. It runs under the manager state lock. A *ResyncError
// makes the manager fetch that book again.
type Install func() ([]Update, error)

// ResyncError reports a baseline that was already behind the buffered diffs.
type ResyncError struct {
	Pair string
}

func (e *ResyncError) Error() string {
	return "order book " + e.Pair + " is behind its diff stream"
}

func (e *ResyncError) Unwrap() error {
	return domain.ErrResyncRequired
}

// Handler owns the state of one subscription context. Reset, Apply and the
// returned Install funcs are serialized by the manager; FetchBaseline and
// Resync run without the lock and must not touch state.
type Handler[T any] interface {
	Kinds() []domain.StreamKind
	Symbols(target T) []*domain.MarketSymbol
	Reset(target T)
	FetchBaseline(ctx context.Context, target T) (Install, error)
	Apply(ev domain.Event) (*Update, error)
	// Resync refetches the book of pair after domain.ErrResyncRequired.
	Resync(ctx context.Context, pair string) (Install, error)
}

type ReconnectPolicy struct {
	Enabled bool
	Min     time.Duration
	Max     time.Duration
	Factor  float64
}

func (p ReconnectPolicy) backoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    p.Min,
		Max:    p.Max,
		Factor: p.Factor,
		Jitter: true,
	}
}

type ManagerConfig struct {
	// Name identifies the subscription context in logs, metrics and sinks.
	Name      string
	Reconnect ReconnectPolicy
	// DegradedStart opens the stream even when the baseline fetch failed.
	DegradedStart bool
}

type Status struct {
	Context    string
	State      domain.ConnState
	ConnID     string
	Streams    []string
	LastError  error
	Reconnects int64
}

// SubscriptionManager keeps at most one live connection for a changing
// target. A new target closes the previous connection before any state is
// reset, and every callback is bound to the generation it was opened for.
type SubscriptionManager[T any] struct {
	cfg     ManagerConfig
	stream  domain.ProviderStreamAPI
	handler Handler[T]
	sink    Sink
	log     *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	// lifecycleMu serializes Switch, Close and reconnects.
	lifecycleMu sync.Mutex
	conn        domain.Connection
	target      T
	hasTarget   bool

	reconnectMu     sync.Mutex
	cancelReconnect context.CancelFunc

	// stateMu guards generation and handler state.
	stateMu    sync.Mutex
	generation uint64

	statusMu sync.RWMutex
	status   Status
}

func NewSubscriptionManager[T any](
	cfg ManagerConfig,
	stream domain.ProviderStreamAPI,
	handler Handler[T],
	sink Sink,
) *SubscriptionManager[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &SubscriptionManager[T]{
		cfg:     cfg,
		stream:  stream,
		handler: handler,
		sink:    sink,
		log:     logger.WithComponent("subscription-manager").WithField("context", cfg.Name),
		ctx:     ctx,
		cancel:  cancel,
		status:  Status{Context: cfg.Name, State: domain.StateIdle},
	}
}

// Switch replaces the subscription target. The previous connection is closed
// and its callbacks are silenced before state is reset. A baseline fetch
// error is returned unless degraded start is enabled.
func (m *SubscriptionManager[T]) Switch(ctx context.Context, target T) error {
	m.stopReconnect()

	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.ctx.Err() != nil {
		return domain.ErrConnectionClosed
	}

	if err := m.closeConn(); err != nil {
		m.log.WithError(err).Warn("closing previous connection")
	}

	m.stateMu.Lock()
	m.generation++
	gen := m.generation
	m.handler.Reset(target)
	m.stateMu.Unlock()

	m.target = target
	m.hasTarget = true

	symbols := m.handler.Symbols(target)
	if len(symbols) == 0 {
		m.setStatus(domain.StateIdle, "", nil, nil)
		m.log.Info("subscription cleared")
		return nil
	}

	m.log.WithField("symbols", pairs(symbols)).Info("switching subscription")
	m.setStatus(domain.StateConnecting, "", nil, nil)

	install, err := m.handler.FetchBaseline(ctx, target)
	if err != nil {
		if !m.cfg.DegradedStart {
			m.setStatus(domain.StateClosed, "", nil, err)
			return err
		}
		m.log.WithError(err).Warn("baseline fetch failed, starting without it")
	} else if _, err := m.install(gen, install); err != nil {
		m.installFailed(gen, err)
	}

	conn, err := m.stream.Open(ctx, symbols, m.handler.Kinds(), m.callbacks(gen))
	if err != nil {
		m.setStatus(domain.StateClosed, "", nil, err)
		m.scheduleReconnect(gen, err)
		return err
	}

	m.conn = conn
	m.setStatus(domain.StateOpen, conn.ID(), conn.Streams(), nil)
	return nil
}

// Close tears the context down. State stays readable but no longer changes.
func (m *SubscriptionManager[T]) Close() error {
	m.stopReconnect()

	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.cancel()
	err := m.closeConn()

	m.stateMu.Lock()
	m.generation++
	m.stateMu.Unlock()

	m.hasTarget = false
	m.setStatus(domain.StateClosed, "", nil, nil)
	m.log.Info("subscription closed")
	return err
}

func (m *SubscriptionManager[T]) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	s := m.status
	s.Streams = append([]string(nil), m.status.Streams...)
	return s
}

func (m *SubscriptionManager[T]) closeConn() error {
	if m.conn == nil {
		return nil
	}
	conn := m.conn
	m.conn = nil
	m.setStatus(domain.StateClosing, conn.ID(), conn.Streams(), nil)
	return conn.Close()
}

func (m *SubscriptionManager[T]) callbacks(gen uint64) domain.StreamCallbacks {
	return domain.StreamCallbacks{
		OnTicker: func(ev *domain.TickerEvent) { m.dispatch(gen, ev) },
		OnDepth:  func(ev *domain.DepthDeltaEvent) { m.dispatch(gen, ev) },
		OnTrade:  func(ev *domain.TradeEvent) { m.dispatch(gen, ev) },
		OnError: func(err error) {
			// the reader goroutine must return before the handle can be closed
			go m.onTransportError(gen, err)
		},
	}
}

func (m *SubscriptionManager[T]) dispatch(gen uint64, ev domain.Event) {
	m.stateMu.Lock()
	if m.generation != gen {
		m.stateMu.Unlock()
		return
	}
	upd, err := m.handler.Apply(ev)
	m.stateMu.Unlock()

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrResyncRequired):
		promclient.DroppedDepthUpdatesTotal.WithLabelValues("resync").Inc()
		m.log.WithField("symbol", ev.Pair()).Warn("order book out of sequence, refetching baseline")
		go m.resync(gen, ev.Pair())
	case errors.Is(err, domain.ErrOrderBookUpdateIsOutdated):
		promclient.DroppedDepthUpdatesTotal.WithLabelValues("outdated").Inc()
	case errors.Is(err, domain.ErrOrderBookUpdateIsOutOfSequence):
		promclient.DroppedDepthUpdatesTotal.WithLabelValues("out_of_sequence").Inc()
		m.log.WithField("symbol", ev.Pair()).Debug("out of sequence depth update dropped")
	default:
		m.log.WithError(err).Warn("event not applied")
	}

	if upd != nil {
		m.publish(*upd)
	}
}

// install reports false when gen is stale and nothing was installed.
func (m *SubscriptionManager[T]) install(gen uint64, install Install) (bool, error) {
	m.stateMu.Lock()
	if m.generation != gen {
		m.stateMu.Unlock()
		return false, nil
	}
	updates, err := install()
	m.stateMu.Unlock()

	for _, upd := range updates {
		m.publish(upd)
	}
	return true, err
}

func (m *SubscriptionManager[T]) installFailed(gen uint64, err error) {
	var resyncErr *ResyncError
	if errors.As(err, &resyncErr) {
		promclient.DroppedDepthUpdatesTotal.WithLabelValues("resync").Inc()
		m.log.WithField("symbol", resyncErr.Pair).Warn("baseline is behind the stream, refetching")
		go m.resync(gen, resyncErr.Pair)
		return
	}
	m.log.WithError(err).Warn("baseline not installed")
}

func (m *SubscriptionManager[T]) publish(upd Update) {
	if m.sink == nil {
		return
	}
	upd.Context = m.cfg.Name
	m.sink.Publish(upd)
}

func (m *SubscriptionManager[T]) current(gen uint64) bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.generation == gen
}

// resync refetches a book until one bridges the buffered diffs or the
// generation changes.
func (m *SubscriptionManager[T]) resync(gen uint64, pair string) {
	b := m.cfg.Reconnect.backoff()
	for m.current(gen) {
		install, err := m.handler.Resync(m.ctx, pair)
		if err == nil {
			if install == nil {
				return
			}
			if _, err = m.install(gen, install); err == nil {
				return
			}
			if !errors.Is(err, domain.ErrResyncRequired) {
				m.log.WithError(err).WithField("symbol", pair).Warn("resynced book not installed")
				return
			}
		}

		m.log.WithError(err).WithField("symbol", pair).Warn("order book resync failed")
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(b.Duration()):
		}
	}
}

func (m *SubscriptionManager[T]) onTransportError(gen uint64, err error) {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if !m.current(gen) {
		return
	}

	m.log.WithError(err).Error("subscription connection lost")
	_ = m.closeConn()
	m.setStatus(domain.StateClosed, "", nil, err)
	m.scheduleReconnect(gen, err)
}

// scheduleReconnect must be called with lifecycleMu held.
func (m *SubscriptionManager[T]) scheduleReconnect(gen uint64, cause error) {
	if !m.cfg.Reconnect.Enabled || !m.hasTarget {
		return
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.reconnectMu.Lock()
	if m.cancelReconnect != nil {
		m.cancelReconnect()
	}
	m.cancelReconnect = cancel
	m.reconnectMu.Unlock()

	target := m.target
	go m.reconnect(ctx, gen, target)
}

func (m *SubscriptionManager[T]) stopReconnect() {
	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()

	if m.cancelReconnect != nil {
		m.cancelReconnect()
		m.cancelReconnect = nil
	}
}

// reconnect reopens the same target with backoff. Handler state is kept.
func (m *SubscriptionManager[T]) reconnect(ctx context.Context, gen uint64, target T) {
	b := m.cfg.Reconnect.backoff()
	symbols := m.handler.Symbols(target)

	for {
		delay := b.Duration()
		m.log.WithField("delay", delay).Info("reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if done := m.tryReconnect(ctx, gen, symbols); done {
			return
		}
	}
}

func (m *SubscriptionManager[T]) tryReconnect(ctx context.Context, gen uint64, symbols []*domain.MarketSymbol) bool {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if ctx.Err() != nil || !m.current(gen) {
		return true
	}

	m.statusMu.Lock()
	m.status.Reconnects++
	m.statusMu.Unlock()
	promclient.ReconnectsTotal.WithLabelValues(m.cfg.Name).Inc()

	m.setStatus(domain.StateConnecting, "", nil, nil)
	conn, err := m.stream.Open(ctx, symbols, m.handler.Kinds(), m.callbacks(gen))
	if err != nil {
		m.setStatus(domain.StateClosed, "", nil, err)
		m.log.WithError(err).Warn("reconnect failed")
		return false
	}

	m.conn = conn
	m.setStatus(domain.StateOpen, conn.ID(), conn.Streams(), nil)

	m.reconnectMu.Lock()
	m.cancelReconnect = nil
	m.reconnectMu.Unlock()
	return true
}

// setStatus keeps the last error until a connection opens.
func (m *SubscriptionManager[T]) setStatus(state domain.ConnState, connID string, streams []string, err error) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()

	m.status.State = state
	m.status.ConnID = connID
	m.status.Streams = streams
	switch {
	case err != nil:
		m.status.LastError = err
	case state == domain.StateOpen || state == domain.StateIdle:
		m.status.LastError = nil
	}
}

func pairs(symbols []*domain.MarketSymbol) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = s.Pair()
	}
	return out
}
