package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts conversation-view activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	snapshots      prometheus.Counter
	snapshotErrors prometheus.Counter
	pages          *prometheus.CounterVec
	sends          *prometheus.CounterVec
	receipts       *prometheus.CounterVec
	lookups        *prometheus.CounterVec
	activeViews    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cutechat",
			Name:      "snapshots_total",
			Help:      "Live snapshots applied to a conversation view.",
		}),
		snapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cutechat",
			Name:      "snapshot_errors_total",
			Help:      "Subscription delivery errors.",
		}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cutechat",
			Name:      "pages_total",
			Help:      "History pages requested, by result (loaded, empty, error).",
		}, []string{"result"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cutechat",
			Name:      "sends_total",
			Help:      "Outgoing drafts, by result (sent, invalid, failed, retried, cancelled).",
		}, []string{"result"}),
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cutechat",
			Name:      "receipt_writes_total",
			Help:      "Read receipt writes, by target (messages, summary) and result.",
		}, []string{"target", "result"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cutechat",
			Name:      "translator_lookups_total",
			Help:      "Auxiliary reads done while translating documents, by kind (sender, attachment) and result.",
		}, []string{"kind", "result"}),
		activeViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cutechat",
			Name:      "active_views",
			Help:      "Conversation views currently mounted.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.snapshots, m.snapshotErrors, m.pages, m.sends, m.receipts, m.lookups, m.activeViews)
	}
	return m
}

func (m *Metrics) Snapshot() {
	if m != nil {
		m.snapshots.Inc()
	}
}

func (m *Metrics) SnapshotError() {
	if m != nil {
		m.snapshotErrors.Inc()
	}
}

func (m *Metrics) Page(result string) {
	if m != nil {
		m.pages.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Send(result string) {
	if m != nil {
		m.sends.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Receipt(target, result string) {
	if m != nil {
		m.receipts.WithLabelValues(target, result).Inc()
	}
}

func (m *Metrics) Lookup(kind, result string) {
	if m != nil {
		m.lookups.WithLabelValues(kind, result).Inc()
	}
}

func (m *Metrics) ViewMounted() {
	if m != nil {
		m.activeViews.Inc()
	}
}

func (m *Metrics) ViewUnmounted() {
	if m != nil {
		m.activeViews.Dec()
	}
}
