package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// EngineStats provides the metrics collector access to live engine state.
type EngineStats interface {
	ActiveRuns() int
	CachedSessions() int
	SSESubscriberCount() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool  *pgxpool.Pool
	stats EngineStats

	activeRuns      *prometheus.Desc
	cachedSessions  *prometheus.Desc
	sseSubscribers  *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool may be nil (database gauges report 0). stats may be nil.
func NewCollector(pool *pgxpool.Pool, stats EngineStats) *Collector {
	return &Collector{
		pool:  pool,
		stats: stats,
		activeRuns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_runs"),
			"Current number of in-flight pipeline runs.",
			nil, nil,
		),
		cachedSessions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "cached_sessions"),
			"Sessions held in the in-memory result cache.",
			nil, nil,
		),
		sseSubscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sse_subscribers"),
			"Current number of SSE subscribers.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "db_total_conns"),
			"Total connections in the database pool.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "db_acquired_conns"),
			"Acquired connections in the database pool.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "db_idle_conns"),
			"Idle connections in the database pool.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeRuns
	ch <- c.cachedSessions
	ch <- c.sseSubscribers
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.stats != nil {
		ch <- prometheus.MustNewConstMetric(c.activeRuns, prometheus.GaugeValue, float64(c.stats.ActiveRuns()))
		ch <- prometheus.MustNewConstMetric(c.cachedSessions, prometheus.GaugeValue, float64(c.stats.CachedSessions()))
		ch <- prometheus.MustNewConstMetric(c.sseSubscribers, prometheus.GaugeValue, float64(c.stats.SSESubscriberCount()))
	}
	if c.pool != nil {
		st := c.pool.Stat()
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(st.TotalConns()))
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(st.AcquiredConns()))
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, float64(st.IdleConns()))
	}
}
