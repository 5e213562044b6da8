package promclient

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spooky-finn/marketsync/infrastructure/logger"
)

const namespace = "marketsync"

var log = logger.WithComponent("promclient")

var OpenConnectionsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_connections",
		Help:      "open multiplexed stream connections",
	},
)

var FramesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_total",
		Help:      "decoded stream frames by kind",
	},
	[]string{"kind"},
)

var DecodeErrorsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_errors_total",
		Help:      "dropped malformed frames",
	},
)

var TransportErrorsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transport_errors_total",
		Help:      "socket level failures",
	},
)

var DroppedDepthUpdatesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_depth_updates_total",
		Help:      "depth updates not applied to the book",
	},
	[]string{"reason"},
)

var BaselineFetchSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "baseline_fetch_seconds",
		Help:      "REST baseline call latency",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"resource"},
)

var ReconnectsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconnects_total",
		Help:      "reconnect attempts by subscription context",
	},
	[]string{"context"},
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// Registry returns the process registry with every collector registered.
func Registry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			OpenConnectionsGauge,
			FramesTotal,
			DecodeErrorsTotal,
			TransportErrorsTotal,
			DroppedDepthUpdatesTotal,
			BaselineFetchSeconds,
			ReconnectsTotal,
			collectors.NewGoCollector(),
		)
	})
	return registry
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}

// StartPromClientServer blocks serving /metrics on addr.
func StartPromClientServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	log.WithField("addr", addr).Info("prometheus server listening")
	return http.ListenAndServe(addr, mux)
}
