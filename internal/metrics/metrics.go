package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BillComputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterbill_bill_computations_total",
			Help: "Total number of bill computations per customer type",
		},
		[]string{"customer_type"},
	)

	BillComputationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waterbill_bill_computation_duration_seconds",
			Help:    "Bill computation duration in seconds per customer type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"customer_type"},
	)

	DegradedComputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterbill_degraded_computations_total",
			Help: "Computations that degraded on messy tariff data, by reason",
		},
		[]string{"reason"},
	)

	MissingTariffTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterbill_missing_tariff_total",
			Help: "Computations rejected because no tariff row exists",
		},
		[]string{"customer_type"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterbill_request_errors_total",
			Help: "Total number of error responses per path and code",
		},
		[]string{"path", "code"},
	)

	DBPoolTotalConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waterbill_db_pool_total_conns",
			Help: "Total number of connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waterbill_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiredConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waterbill_db_pool_acquired_conns",
			Help: "Currently acquired (in-use) connections per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterbill_db_pool_acquires_total",
			Help: "Total number of connection acquires per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, total, idle, acquired float64, acquires uint64) {
	DBPoolTotalConns.WithLabelValues(driver).Set(total)
	DBPoolIdleConns.WithLabelValues(driver).Set(idle)
	DBPoolAcquiredConns.WithLabelValues(driver).Set(acquired)
	DBPoolAcquiresTotal.WithLabelValues(driver).Add(float64(acquires))
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waterbill_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waterbill_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterbill_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
