// Package monitor records gateway metrics and turns upstream anomalies into alerts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"market-gateway/internal/events"
)

// Monitor watches the bus for upstream anomalies, counts them and forwards alerts to the sink.
type Monitor struct {
	Bus     *events.Bus
	Metrics *Metrics
	Sink    AlertSink
	Logger  *zap.Logger
}

// Start subscribes to anomaly events and processes them until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if m.Bus == nil || m.Sink == nil {
		logger.Warn("monitor not fully configured; skipping")
		return
	}

	inconsistencies, unsubInc := m.Bus.Subscribe(events.EventBackendInconsistency, 50)
	failures, unsubFail := m.Bus.Subscribe(events.EventUpstreamFailure, 50)
	go func() {
		defer unsubInc()
		defer unsubFail()
		for {
			var msg any
			select {
			case <-ctx.Done():
				return
			case msg = <-inconsistencies:
			case msg = <-failures:
			}
			if msg == nil {
				continue
			}
			if err := m.Sink.Send(formatAlert(msg)); err != nil {
				logger.Error("alert delivery failed", zap.Error(err))
			}
		}
	}()
}

// Observe records one collaborator call: its latency goes to h and a failure is counted and published.
func (m *Monitor) Observe(source string, h *LatencyHistogram, elapsed time.Duration, err error) {
	if h != nil {
		h.RecordDuration(elapsed)
	}
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if m.Metrics != nil {
		m.Metrics.IncrementUpstreamFailures()
	}
	if m.Bus != nil {
		m.Bus.Publish(events.EventUpstreamFailure, events.UpstreamFailure{Source: source, Err: err.Error(), At: time.Now()})
	}
}

// ReportInconsistency counts a candle series that held more buckets than its window allows and raises an alert.
func (m *Monitor) ReportInconsistency(ev events.Inconsistency) {
	if m.Metrics != nil {
		m.Metrics.IncrementInconsistencies()
	}
	if m.Bus != nil {
		m.Bus.Publish(events.EventBackendInconsistency, ev)
	}
}

func formatAlert(msg any) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	switch t := msg.(type) {
	case events.Inconsistency:
		return fmt.Sprintf("[%s] candle backend returned %d %s candles for %s %s window [%s, %s)",
			ts, t.Count, t.PriceType, t.AssetPairID, t.Period, t.From.Format(time.RFC3339), t.To.Format(time.RFC3339))
	case events.UpstreamFailure:
		return fmt.Sprintf("[%s] upstream %s failed: %s", ts, t.Source, t.Err)
	case string:
		return "[" + ts + "] " + t
	default:
		return "[" + ts + "] alert triggered"
	}
}
