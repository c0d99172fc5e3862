// Package metrics provides Prometheus metrics for gridnet.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a gridnet process.
type Metrics struct {
	// Medium metrics
	EnvelopesBroadcast prometheus.Counter
	EnvelopesUnicast   prometheus.Counter
	EnvelopesDelivered prometheus.Counter
	EnvelopesDropped   prometheus.Counter

	// Discovery metrics
	StatusAnnounces prometheus.Counter
	InitBroadcasts  prometheus.Counter
	StaleSweeps     prometheus.Counter
	PeersKnown      prometheus.Gauge
	PeersOnline     prometheus.Gauge
}

// Default is the process-wide metrics instance. promauto registers on
// the default registry, so it must be created exactly once.
var Default = New("gridnet")

// New creates a Metrics instance with the given namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		EnvelopesBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_broadcast_total",
			Help:      "Total envelopes published on broadcast tags",
		}),
		EnvelopesUnicast: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_unicast_total",
			Help:      "Total envelopes sent point-to-point",
		}),
		EnvelopesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_delivered_total",
			Help:      "Total envelopes accepted from a backlog",
		}),
		EnvelopesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_dropped_total",
			Help:      "Total envelopes dropped because a backlog was full",
		}),

		StatusAnnounces: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_announces_total",
			Help:      "Total periodic self-announce broadcasts",
		}),
		InitBroadcasts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "init_broadcasts_total",
			Help:      "Total startup handshake broadcasts",
		}),
		StaleSweeps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_sweeps_total",
			Help:      "Total staleness sweeps executed",
		}),
		PeersKnown: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_known",
			Help:      "Peer records in the map, online or not",
		}),
		PeersOnline: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_online",
			Help:      "Peer records currently considered online",
		}),
	}
}

// Server exposes /metrics over HTTP.
type Server struct {
	server *http.Server
}

// NewServer creates a metrics server on addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
	}
}

// StartAsync serves in a background goroutine.
func (s *Server) StartAsync() {
	go func() {
		_ = s.server.ListenAndServe()
	}()
}

// Stop closes the server.
func (s *Server) Stop() error {
	return s.server.Close()
}
