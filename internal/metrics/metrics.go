// Package metrics instruments the driver's connection pools, queries, and
// retry combinator with Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every Prometheus metric this driver exposes.
type Collector struct {
	Registry *prometheus.Registry

	connectionsActive  *prometheus.GaugeVec
	connectionsIdle    *prometheus.GaugeVec
	connectionsTotal   *prometheus.GaugeVec
	connectionsWaiting *prometheus.GaugeVec
	poolExhausted      *prometheus.CounterVec
	acquireDuration    *prometheus.HistogramVec

	queryDuration *prometheus.HistogramVec
	retriesTotal  *prometheus.CounterVec

	serverHealth *prometheus.GaugeVec
}

// New creates and registers every metric on a fresh registry. Safe to call
// multiple times (tests, config reload) since each call is independent.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		connectionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orientgo_connections_active",
				Help: "Number of active connections per server",
			},
			[]string{"server"},
		),
		connectionsIdle: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orientgo_connections_idle",
				Help: "Number of idle connections per server",
			},
			[]string{"server"},
		),
		connectionsTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orientgo_connections_total",
				Help: "Total number of connections per server",
			},
			[]string{"server"},
		),
		connectionsWaiting: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orientgo_connections_waiting",
				Help: "Number of goroutines waiting to acquire a connection per server",
			},
			[]string{"server"},
		),
		poolExhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orientgo_pool_exhausted_total",
				Help: "Total number of times Acquire had to wait because the pool was at its connection limit, per server",
			},
			[]string{"server"},
		),
		acquireDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orientgo_acquire_duration_seconds",
				Help:    "Time spent waiting for Pool.Acquire to return",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"server"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orientgo_query_duration_seconds",
				Help:    "Duration of query/command/script round trips",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"db", "kind"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orientgo_retries_total",
				Help: "Number of retry-combinator re-dispatches triggered by concurrent modification (error code 3)",
			},
			[]string{"db"},
		),
		serverHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orientgo_server_health",
				Help: "Server reachability (1=healthy, 0=unhealthy)",
			},
			[]string{"server"},
		),
	}

	reg.MustRegister(
		c.connectionsActive,
		c.connectionsIdle,
		c.connectionsTotal,
		c.connectionsWaiting,
		c.poolExhausted,
		c.acquireDuration,
		c.queryDuration,
		c.retriesTotal,
		c.serverHealth,
	)

	return c
}

// UpdatePoolStats sets the connection gauges for a server from a pool stats
// snapshot.
func (c *Collector) UpdatePoolStats(server string, active, idle, total, waiting int) {
	c.connectionsActive.WithLabelValues(server).Set(float64(active))
	c.connectionsIdle.WithLabelValues(server).Set(float64(idle))
	c.connectionsTotal.WithLabelValues(server).Set(float64(total))
	c.connectionsWaiting.WithLabelValues(server).Set(float64(waiting))
}

// PoolExhausted increments the exhaustion counter for a server.
func (c *Collector) PoolExhausted(server string) {
	c.poolExhausted.WithLabelValues(server).Inc()
}

// AcquireDuration observes the time spent inside Pool.Acquire.
func (c *Collector) AcquireDuration(server string, d time.Duration) {
	c.acquireDuration.WithLabelValues(server).Observe(d.Seconds())
}

// QueryDuration observes the duration of a query/command/script round trip.
func (c *Collector) QueryDuration(db, kind string, d time.Duration) {
	c.queryDuration.WithLabelValues(db, kind).Observe(d.Seconds())
}

// RetryDispatched increments the retry counter for a database session.
func (c *Collector) RetryDispatched(db string) {
	c.retriesTotal.WithLabelValues(db).Inc()
}

// SetServerHealth sets the health gauge for a server.
func (c *Collector) SetServerHealth(server string, healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	c.serverHealth.WithLabelValues(server).Set(val)
}

// RemoveServer deletes every metric series for a server, used when a server
// is removed from the cluster's selector.
func (c *Collector) RemoveServer(server string) {
	c.connectionsActive.DeleteLabelValues(server)
	c.connectionsIdle.DeleteLabelValues(server)
	c.connectionsTotal.DeleteLabelValues(server)
	c.connectionsWaiting.DeleteLabelValues(server)
	c.poolExhausted.DeleteLabelValues(server)
	c.serverHealth.DeleteLabelValues(server)
}
