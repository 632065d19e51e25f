package realtime

import (
	"context"
	"log/slog"

	"github.com/hackgods/salon-scheduling/internal/metrics"
)

// Fanout publishes to every wrapped publisher. Failures are logged and never
// returned, so a broken transport cannot fail the mutation that emitted the event.
type Fanout struct {
	publishers []Publisher
	logger     *slog.Logger
	metrics    *metrics.SchedulingMetrics
}

func NewFanout(logger *slog.Logger, m *metrics.SchedulingMetrics, publishers ...Publisher) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{publishers: publishers, logger: logger, metrics: m}
}

func (f *Fanout) Publish(ctx context.Context, ev Event) error {
	f.metrics.ObserveRealtimeEvent(string(ev.Type))
	for _, p := range f.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			f.logger.Warn("realtime publish failed",
				"event_type", ev.Type,
				"business_id", ev.BusinessID,
				"err", err,
			)
		}
	}
	return nil
}
