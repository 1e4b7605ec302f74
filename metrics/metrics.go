// Package metrics exposes Prometheus instrumentation for the API.
package metrics

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipe_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipe_api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	// RelationsReconciled counts nested tags/ingredients by outcome: created or reused.
	RelationsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_relations_reconciled_total",
			Help: "Nested tags and ingredients resolved by fetch-or-create",
		},
		[]string{"relation", "outcome"},
	)

	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_auth_failures_total",
			Help: "Rejected authentication attempts by reason",
		},
		[]string{"reason"},
	)
)

// RecordReconciled records one fetch-or-create outcome.
func RecordReconciled(relation string, created bool) {
	outcome := "reused"
	if created {
		outcome = "created"
	}
	RelationsReconciled.WithLabelValues(relation, outcome).Inc()
}

func RecordAuthFailure(reason string) {
	AuthFailures.WithLabelValues(reason).Inc()
}

// RegisterDBStats exports connection pool statistics for db under dbName.
// Registering the same name twice is not an error.
func RegisterDBStats(db *sql.DB, dbName string) error {
	err := prometheus.Register(collectors.NewDBStatsCollector(db, dbName))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}

// Middleware records latency per matched route, not per raw path, to keep label cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		APIActiveRequests.Inc()
		defer APIActiveRequests.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		APIRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
