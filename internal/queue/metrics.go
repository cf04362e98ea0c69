package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// jobsClaimed tracks how many jobs each claim call returns.
	jobsClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxen_queue_jobs_claimed_total",
		Help: "Total number of jobs claimed, by job type",
	}, []string{"job_type"})

	// jobsFinalized tracks terminal outcomes by job type and status.
	jobsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxen_queue_jobs_finalized_total",
		Help: "Total number of jobs finalized, by job type and outcome",
	}, []string{"job_type", "outcome"})

	// jobsRetried tracks retry-sentinel outcomes.
	jobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxen_queue_jobs_retried_total",
		Help: "Total number of jobs requeued via the retry sentinel, by job type",
	}, []string{"job_type"})

	// jobDuration tracks time spent inside the work function.
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oxen_queue_job_duration_seconds",
		Help:    "Time spent running a job's work function, by job type and outcome",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"job_type", "outcome"})

	// pollDelay tracks the Poller's current inter-poll delay.
	pollDelay = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oxen_queue_poll_delay_seconds",
		Help: "Current adaptive poll delay, by job type",
	}, []string{"job_type"})

	// inflightGauge tracks the Dispatcher's in-flight job count.
	inflightGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oxen_queue_inflight_jobs",
		Help: "Number of jobs currently being processed, by job type",
	}, []string{"job_type"})

	// recoveredJobs tracks rows resurrected by the stuck-job recoverer.
	recoveredJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxen_queue_jobs_recovered_total",
		Help: "Total number of jobs recovered from processing back to waiting, by job type",
	}, []string{"job_type"})

	// recovererErrors tracks failed recovery sweeps.
	recovererErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxen_queue_recoverer_errors_total",
		Help: "Total number of failed stuck-job recovery sweeps, by job type",
	}, []string{"job_type"})
)
