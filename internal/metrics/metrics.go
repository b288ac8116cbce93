// Package metrics owns the Prometheus registry exposed on /actuator/prometheus.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"userbench/internal/eventloop"
)

type Registry struct {
	reg      *prometheus.Registry
	requests *prometheus.HistogramVec
}

// New registers the runtime collectors and the request histogram. mode is
// attached as a constant label so both servers can share one dashboard.
func New(mode string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Label names follow the Spring actuator convention so dashboards are shared
	// between implementations.
	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "http_server_requests_seconds",
		Help:        "Duration of HTTP requests handled by the API.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: prometheus.Labels{"mode": mode},
	}, []string{"method", "uri", "status"})
	reg.MustRegister(requests)

	return &Registry{reg: reg, requests: requests}
}

// Middleware observes every request that reaches the router.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		uri := c.FullPath()
		if uri == "" {
			uri = "UNKNOWN"
		}
		r.requests.
			WithLabelValues(c.Request.Method, uri, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// WatchSQL exports database/sql pool statistics.
func (r *Registry) WatchSQL(db *sql.DB, name string) {
	r.reg.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// WatchPGX exports pgxpool statistics.
func (r *Registry) WatchPGX(pool *pgxpool.Pool) {
	r.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pgxpool_acquired_conns",
			Help: "Connections currently checked out of the pgx pool.",
		}, func() float64 { return float64(pool.Stat().AcquiredConns()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pgxpool_idle_conns",
			Help: "Idle connections in the pgx pool.",
		}, func() float64 { return float64(pool.Stat().IdleConns()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pgxpool_max_conns",
			Help: "Configured maximum size of the pgx pool.",
		}, func() float64 { return float64(pool.Stat().MaxConns()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "pgxpool_empty_acquire_total",
			Help: "Acquires that had to wait for a connection.",
		}, func() float64 { return float64(pool.Stat().EmptyAcquireCount()) }),
	)
}

// WatchLoop exports queue depth and rejection counts of the event loop.
func (r *Registry) WatchLoop(loop *eventloop.Loop) {
	r.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "eventloop_pending_tasks",
			Help: "Continuations waiting in the event loop queue.",
		}, func() float64 { return float64(loop.Stats().Pending) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "eventloop_workers",
			Help: "Number of event loop workers.",
		}, func() float64 { return float64(loop.Stats().Workers) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "eventloop_rejected_total",
			Help: "Continuations refused because the queue was full or closed.",
		}, func() float64 { return float64(loop.Stats().Rejected) }),
	)
}
