package graphitesend

import (
	"errors"

	"github.com/daniellawrence/graphitesend/sender"
	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts what a Client did. Counters are shared by every Client
// registered with the same Registerer.
type Stats struct {
	SentMessages *prometheus.CounterVec
	SentBytes    *prometheus.CounterVec
	SendErrors   *prometheus.CounterVec
	Reconnects   *prometheus.CounterVec
}

func newStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		SentMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphitesend_sent_messages_total",
			Help: "Number of messages written to carbon.",
		}, []string{"protocol"}),
		SentBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphitesend_sent_bytes_total",
			Help: "Number of bytes written to carbon.",
		}, []string{"protocol"}),
		SendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphitesend_send_errors_total",
			Help: "Number of failed sends by error kind.",
		}, []string{"kind"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphitesend_reconnects_total",
			Help: "Number of reconnect attempts by result.",
		}, []string{"result"}),
	}
	if reg == nil {
		return s
	}
	s.SentMessages = register(reg, s.SentMessages)
	s.SentBytes = register(reg, s.SentBytes)
	s.SendErrors = register(reg, s.SendErrors)
	s.Reconnects = register(reg, s.Reconnects)
	return s
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (s *Stats) observeSent(encoding sender.Encoding, n int) {
	s.SentMessages.WithLabelValues(encoding.String()).Inc()
	s.SentBytes.WithLabelValues(encoding.String()).Add(float64(n))
}

func (s *Stats) observeError(err error) {
	s.SendErrors.WithLabelValues(errorKind(err)).Inc()
}

func (s *Stats) observeReconnect(err error) {
	if err != nil {
		s.Reconnects.WithLabelValues("failure").Inc()
		return
	}
	s.Reconnects.WithLabelValues("success").Inc()
}

func errorKind(err error) string {
	var sendErr *sender.SendError
	var connErr *sender.ConnectionError
	switch {
	case errors.Is(err, sender.ErrNotConnected):
		return "not_connected"
	case errors.As(err, &sendErr):
		return sendErr.Kind.String()
	case errors.As(err, &connErr):
		return "connect_" + connErr.Kind.String()
	case errors.Is(err, sender.ErrFormat), errors.Is(err, sender.ErrEmptyBatch):
		return "format"
	default:
		return "other"
	}
}
