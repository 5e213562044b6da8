package natssink

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/spooky-finn/marketsync/helpers"
	"github.com/spooky-finn/marketsync/infrastructure/logger"
	"github.com/spooky-finn/marketsync/usecase"
)

const DefaultSubjectPrefix = "marketsync"

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Sink publishes every update as JSON to
// <prefix>.<context>.<kind>.<symbol>, fire and forget.
type Sink struct {
	pub    Publisher
	prefix string
	log    *logrus.Entry
}

var _ usecase.Sink = (*Sink)(nil)

func NewSink(pub Publisher, prefix string) *Sink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Sink{
		pub:    pub,
		prefix: prefix,
		log:    logger.WithComponent("nats-sink"),
	}
}

func (s *Sink) Subject(upd usecase.Update) string {
	return helpers.Subject(s.prefix, upd.Context, string(upd.Kind), upd.Symbol)
}

func (s *Sink) Publish(upd usecase.Update) {
	subject := s.Subject(upd)

	data, err := json.Marshal(upd)
	if err != nil {
		s.log.WithError(err).WithField("subject", subject).Error("failed to serialize update")
		return
	}

	if err := s.pub.Publish(subject, data); err != nil {
		s.log.WithError(err).WithField("subject", subject).Warn("failed to publish update")
	}
}

// Connect dials the NATS server with reconnects handled by the client.
func Connect(url, name string) (*nats.Conn, error) {
	log := logger.WithComponent("nats-sink")

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connection failed: %w", err)
	}
	return nc, nil
}
