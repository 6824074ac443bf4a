package services

import (
	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for the task subsystem
type Metrics struct {
	submitted prometheus.Counter
	finished  *prometheus.CounterVec
	active    prometheus.Gauge
	evicted   prometheus.Counter
}

// NewMetrics registers the task collectors on reg and wires them to store
func NewMetrics(reg prometheus.Registerer, store TaskStore) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytmp3_tasks_submitted_total",
			Help: "Tasks created through the submit endpoint or the CLI.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ytmp3_tasks_finished_total",
			Help: "Tasks that reached a terminal state, by state.",
		}, []string{"status"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ytmp3_workers_active",
			Help: "Extraction workers currently running.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytmp3_tasks_evicted_total",
			Help: "Finished tasks removed by the retention janitor.",
		}),
	}

	tracked := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ytmp3_tasks_tracked",
		Help: "Tasks currently held in memory.",
	}, func() float64 { return float64(store.Len()) })

	reg.MustRegister(m.submitted, m.finished, m.active, m.evicted, tracked)

	store.OnChange(m.observe)
	return m
}

func (m *Metrics) observe(t types.Task) {
	if t.Status.IsTerminal() {
		m.finished.WithLabelValues(string(t.Status)).Inc()
	}
}

func (m *Metrics) taskSubmitted() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *Metrics) workerStarted() {
	if m != nil {
		m.active.Inc()
	}
}

func (m *Metrics) workerStopped() {
	if m != nil {
		m.active.Dec()
	}
}

func (m *Metrics) taskEvicted() {
	if m != nil {
		m.evicted.Inc()
	}
}
