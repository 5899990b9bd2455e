package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mintdeck/mintdeck/internal/models"
)

// Metrics owns the scrape registry. Counters are monotonic and bumped
// at record time; gauges hold the last observed value and are refreshed
// from a fresh snapshot on every scrape. The registry is private so
// tests can run side by side without collisions.
type Metrics struct {
	registry *prometheus.Registry

	up            prometheus.Gauge
	activeKeysets prometheus.Gauge
	requestsTotal *prometheus.CounterVec
	diskFree      prometheus.Gauge
	diskTotal     prometheus.Gauge
	loadAvg       *prometheus.GaugeVec
	dbEntries     *prometheus.GaugeVec
	quotesByState *prometheus.GaugeVec
}

// NewMetrics builds the metric families and the Go/process default
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: reg}

	m.up = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "mint_up",
		Help: "1 if the mint's info endpoint is reachable, else 0.",
	})
	m.activeKeysets = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "mint_active_keysets",
		Help: "Number of active keysets reported by the mint.",
	})
	m.requestsTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "mint_requests_total",
		Help: "Cumulative observed mint operations by type.",
	}, []string{"type"})
	m.diskFree = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "admin_os_disk_free_bytes",
		Help: "Free bytes on the primary volume.",
	})
	m.diskTotal = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "admin_os_disk_total_bytes",
		Help: "Total bytes on the primary volume.",
	})
	m.loadAvg = promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Name: "admin_os_load_avg",
		Help: "Host load average.",
	}, []string{"period"})
	m.dbEntries = promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Name: "mint_db_entries_total",
		Help: "Row counts per mint database table.",
	}, []string{"table"})
	m.quotesByState = promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Name: "mint_db_quotes_by_state",
		Help: "Quote counts per state.",
	}, []string{"quote_type", "state"})

	return m
}

// Handler serves the text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest bumps the per-operation counter.
func (m *Metrics) RecordRequest(op models.OpType) {
	m.requestsTotal.WithLabelValues(string(op)).Inc()
}

// SetActiveKeysets updates the keyset gauge; the proxy layer calls this
// when it has a fresher figure than the database pass.
func (m *Metrics) SetActiveKeysets(n float64) {
	m.activeKeysets.Set(n)
}

// ObserveSnapshot refreshes every gauge from a snapshot. Database
// figures are only written when that source is available, so the
// families stay absent rather than lying with zeros.
func (m *Metrics) ObserveSnapshot(snap models.Snapshot) {
	if snap.Mint.Reachable {
		m.up.Set(1)
	} else {
		m.up.Set(0)
	}

	if d := snap.OS.Disk; d != nil {
		m.diskFree.Set(float64(d.FreeBytes))
		m.diskTotal.Set(float64(d.TotalBytes))
	}
	if l := snap.OS.Load; l != nil {
		m.loadAvg.WithLabelValues("1m").Set(l.Load1)
		m.loadAvg.WithLabelValues("5m").Set(l.Load5)
		m.loadAvg.WithLabelValues("15m").Set(l.Load15)
	}

	if !snap.DB.Available {
		return
	}
	for table, tc := range snap.DB.Tables {
		if tc.Total != nil {
			m.dbEntries.WithLabelValues(table).Set(float64(*tc.Total))
		}
		if quoteType, ok := quoteTypeForTable(table); ok {
			for state, n := range tc.ByState {
				m.quotesByState.WithLabelValues(quoteType, state).Set(float64(n))
			}
		}
	}
	if snap.DB.ActiveKeysets != nil {
		m.activeKeysets.Set(float64(*snap.DB.ActiveKeysets))
	}
}

func quoteTypeForTable(table string) (string, bool) {
	switch {
	case strings.HasPrefix(table, "mint_"):
		return "mint", true
	case strings.HasPrefix(table, "melt_"):
		return "melt", true
	default:
		return "", false
	}
}
