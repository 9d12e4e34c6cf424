// Package telemetry is the ambient logging/metrics stack: a small Logger
// interface (so every package in this tree can depend on the interface, not
// on log/slog directly), backed by a JSON slog.Logger, plus the Prometheus
// counters/gauges the detector and event demultiplexer update.
package telemetry

import (
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

// Logger is the structured logging interface used across dexarb.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// NewJSONLogger builds a Logger writing JSON records to stdout.
func NewJSONLogger() Logger {
	return slogLogger{l: slog.New(slog.NewJSONHandler(os.Stdout, nil))}
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
func (s slogLogger) With(args ...any) Logger       { return slogLogger{l: s.l.With(args...)} }

// Metrics holds the Prometheus series emitted by the ingestion and detector
// domains. Construct once with NewMetrics and register on a registry (the
// caller supplies one, typically prometheus.DefaultRegisterer, mirroring the
// teacher's cmd/client wiring).
type Metrics struct {
	PoolUpdatesTotal    *prometheus.CounterVec
	ReconnectsTotal     *prometheus.CounterVec
	SpreadGauge         *prometheus.GaugeVec
	PendingOpened       prometheus.Counter
	PendingSubmitted    prometheus.Counter
	PendingDiscarded    *prometheus.CounterVec
	QuoteOracleFailures prometheus.Counter
}

// NewMetrics constructs and registers every series against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PoolUpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexarb_pool_updates_total",
			Help: "Pool update events processed, by chain and AMM version.",
		}, []string{"chain", "version"}),
		ReconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexarb_subscription_reconnects_total",
			Help: "Reconnect attempts by the event demultiplexer, by chain and subscription kind.",
		}, []string{"chain", "kind"}),
		SpreadGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dexarb_edge_spread",
			Help: "Most recently computed directed spread per edge.",
		}, []string{"symbol", "edge"}),
		PendingOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexarb_pending_opened_total",
			Help: "Pending opportunities opened.",
		}),
		PendingSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexarb_pending_submitted_total",
			Help: "Pending opportunities that cleared simulation and were submitted.",
		}),
		PendingDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexarb_pending_discarded_total",
			Help: "Pending opportunities discarded, by reason.",
		}, []string{"reason"}),
		QuoteOracleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexarb_quote_oracle_failures_total",
			Help: "QuoteOracle.Simulate calls that returned an error.",
		}),
	}

	reg.MustRegister(
		m.PoolUpdatesTotal,
		m.ReconnectsTotal,
		m.SpreadGauge,
		m.PendingOpened,
		m.PendingSubmitted,
		m.PendingDiscarded,
		m.QuoteOracleFailures,
	)

	return m
}
