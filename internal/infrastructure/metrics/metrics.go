package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the cloner
type Metrics struct {
	// Join metrics
	JoinAttempts *prometheus.CounterVec
	JoinDuration prometheus.Histogram

	// Publish metrics
	UnitsPublished  prometheus.Counter
	AlbumsPublished prometheus.Counter
	PublishErrors   *prometheus.CounterVec
	PublishDuration prometheus.Histogram
	UnitsSkipped    *prometheus.CounterVec

	// Account metrics
	ActiveAccounts      prometheus.Gauge
	AccountsQuarantined *prometheus.CounterVec

	// Collaborator metrics
	RewriteErrors   prometheus.Counter
	TransformErrors prometheus.Counter
}

var (
	// DefaultMetrics is the default metrics instance
	DefaultMetrics *Metrics
	once           sync.Once
)

// GetDefaultMetrics returns the singleton metrics instance
func GetDefaultMetrics() *Metrics {
	once.Do(func() {
		DefaultMetrics = NewMetrics()
	})
	return DefaultMetrics
}

func init() {
	GetDefaultMetrics()
}

// NewMetrics creates a new Metrics instance with all counters and gauges
func NewMetrics() *Metrics {
	return &Metrics{
		JoinAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cloner_join_attempts_total",
				Help: "Total number of channel join attempts by result",
			},
			[]string{"result"},
		),
		JoinDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cloner_join_duration_seconds",
			Help:    "Duration of channel join attempts",
			Buckets: prometheus.DefBuckets,
		}),
		UnitsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cloner_units_published_total",
			Help: "Total number of content units published to targets",
		}),
		AlbumsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cloner_albums_published_total",
			Help: "Total number of albums published to targets",
		}),
		PublishErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cloner_publish_errors_total",
				Help: "Total number of publish errors by result",
			},
			[]string{"result"},
		),
		PublishDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cloner_publish_duration_seconds",
			Help:    "Duration of publish operations",
			Buckets: prometheus.DefBuckets,
		}),
		UnitsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cloner_units_skipped_total",
				Help: "Total number of content units skipped by reason",
			},
			[]string{"reason"},
		),
		ActiveAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cloner_active_accounts",
			Help: "Number of accounts currently relaying",
		}),
		AccountsQuarantined: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cloner_accounts_quarantined_total",
				Help: "Total number of accounts moved to quarantine by reason",
			},
			[]string{"reason"},
		),
		RewriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cloner_rewrite_errors_total",
			Help: "Total number of text rewrite collaborator failures",
		}),
		TransformErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cloner_transform_errors_total",
			Help: "Total number of media transform collaborator failures",
		}),
	}
}
