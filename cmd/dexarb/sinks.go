package main

import (
	"github.com/dexarb/go-arbengine/detector"
	"github.com/dexarb/go-arbengine/telemetry"
)

// telemetrySinks is the production coordinator.Sinks: it logs every
// observable outcome and updates the Prometheus series telemetry.Metrics
// defines. It holds no business logic — it is the seam a real deployment
// would also wire a Telegram/InfluxDB forwarder or an OrderSubmitter call
// into, spec.md §1's Non-goals keeping those out of this repo.
type telemetrySinks struct {
	logger  telemetry.Logger
	metrics *telemetry.Metrics
}

func newTelemetrySinks(logger telemetry.Logger, metrics *telemetry.Metrics) *telemetrySinks {
	return &telemetrySinks{logger: logger, metrics: metrics}
}

func (s *telemetrySinks) EmitSpreads(symbol string, spreads detector.Spreads) {
	for edge, spread := range spreads {
		s.metrics.SpreadGauge.WithLabelValues(symbol, edge).Set(spread)
	}
}

func (s *telemetrySinks) EmitPending(pending *detector.Pending) {
	s.metrics.PendingOpened.Inc()
	s.logger.Info("opportunity detected",
		"edge", pending.EdgeName, "block", pending.BlockSeen,
		"spread", pending.Spread, "gas_units", pending.EstimatedGasUnits)
}

func (s *telemetrySinks) EmitFinalized(result *detector.FinalizeResult) {
	switch {
	case result.Submitted:
		s.metrics.PendingSubmitted.Inc()
		s.logger.Info("opportunity submitted", "min_input_quote", result.MinInputQuote, "simulated_profit", result.SimulatedProfit)
	case result.Discarded:
		reason := "underfunded"
		if result.SimulatedProfit != 0 {
			reason = "unprofitable"
		}
		s.metrics.PendingDiscarded.WithLabelValues(reason).Inc()
		s.logger.Info("opportunity discarded", "reason", reason, "min_input_quote", result.MinInputQuote, "simulated_profit", result.SimulatedProfit)
	}
}
