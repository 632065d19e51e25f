package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters for booking, reschedule and realtime flows.
// A nil *SchedulingMetrics is valid and records nothing.
type SchedulingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	reschedulesTotal *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	slotQueryLatency prometheus.Histogram
	realtimeEvents   *prometheus.CounterVec
	realtimeDropped  prometheus.Counter
	realtimeSubs     prometheus.Gauge
	expiredTotal     *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Appointment creation attempts by outcome",
		}, []string{"outcome"}),
		reschedulesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "scheduling",
			Name:      "reschedules_total",
			Help:      "Reschedule request operations by action and outcome",
		}, []string{"action", "outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "scheduling",
			Name:      "status_transitions_total",
			Help:      "Appointment status transitions by target status",
		}, []string{"status"}),
		slotQueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "salon",
			Subsystem: "scheduling",
			Name:      "slot_query_seconds",
			Help:      "Latency of slot grid computation",
			Buckets:   prometheus.DefBuckets,
		}),
		realtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Invalidation events published by type",
		}, []string{"type"}),
		realtimeDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "realtime",
			Name:      "dropped_total",
			Help:      "Events skipped because a subscriber buffer was full",
		}),
		realtimeSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "salon",
			Subsystem: "realtime",
			Name:      "subscribers",
			Help:      "Currently connected realtime subscribers",
		}),
		expiredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "scheduling",
			Name:      "expired_total",
			Help:      "Stale pending items cancelled by the expiry worker",
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.bookingsTotal,
		m.reschedulesTotal,
		m.transitionsTotal,
		m.slotQueryLatency,
		m.realtimeEvents,
		m.realtimeDropped,
		m.realtimeSubs,
		m.expiredTotal,
	)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveReschedule(action, outcome string) {
	if m == nil {
		return
	}
	m.reschedulesTotal.WithLabelValues(action, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(status).Inc()
}

func (m *SchedulingMetrics) ObserveSlotQuery(seconds float64) {
	if m == nil {
		return
	}
	m.slotQueryLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveRealtimeEvent(eventType string) {
	if m == nil {
		return
	}
	m.realtimeEvents.WithLabelValues(eventType).Inc()
}

func (m *SchedulingMetrics) ObserveRealtimeDrop() {
	if m == nil {
		return
	}
	m.realtimeDropped.Inc()
}

func (m *SchedulingMetrics) AddSubscribers(delta float64) {
	if m == nil {
		return
	}
	m.realtimeSubs.Add(delta)
}

func (m *SchedulingMetrics) ObserveExpired(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expiredTotal.WithLabelValues(kind).Add(float64(n))
}
