package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job Metrics
	jobStartedCounter  *prometheus.CounterVec
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	// Step Metrics
	stepStartedCounter  *prometheus.CounterVec
	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec
	stepReadCount       *prometheus.CounterVec
	stepWriteCount      *prometheus.CounterVec
	stepFilterCount     *prometheus.CounterVec
	stepCommitCount     *prometheus.CounterVec
	stepRollbackCount   *prometheus.CounterVec

	// Flow Metrics
	flowTransitionCounter *prometheus.CounterVec
	splitDurationSeconds  *prometheus.HistogramVec
}

// NewRegistry creates the registry the recorder publishes to, with the Go runtime and
// process collectors registered.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// NewPrometheusRecorder creates a PrometheusRecorder whose metric names are prefixed with
// namespace and registers its collectors with registry.
func NewPrometheusRecorder(namespace string, registry *prometheus.Registry) *PrometheusRecorder {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}
	histogram := func(name, help string, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
			Buckets:   prometheus.DefBuckets,
		}, labels)
	}

	r := &PrometheusRecorder{
		registry:              registry,
		jobStartedCounter:     counter("batch_job_started_total", "Total number of started batch job executions.", "job_name"),
		jobDurationSeconds:    histogram("batch_job_duration_seconds", "Duration of batch job executions.", "job_name", "status", "exit_code"),
		jobStatusCounter:      counter("batch_job_status_total", "Total number of finished batch job executions by status.", "job_name", "status"),
		stepStartedCounter:    counter("batch_step_started_total", "Total number of started batch step executions.", "job_name", "step_name"),
		stepDurationSeconds:   histogram("batch_step_duration_seconds", "Duration of batch step executions.", "job_name", "step_name", "status", "exit_code"),
		stepStatusCounter:     counter("batch_step_status_total", "Total number of finished batch step executions by status.", "job_name", "step_name", "status"),
		stepReadCount:         counter("batch_step_read_total", "Total items read by step.", "job_name", "step_name"),
		stepWriteCount:        counter("batch_step_write_total", "Total items written by step.", "job_name", "step_name"),
		stepFilterCount:       counter("batch_step_filter_total", "Total items filtered by step.", "job_name", "step_name"),
		stepCommitCount:       counter("batch_step_commit_total", "Total commits by step.", "job_name", "step_name"),
		stepRollbackCount:     counter("batch_step_rollback_total", "Total rollbacks by step.", "job_name", "step_name"),
		flowTransitionCounter: counter("batch_flow_transition_total", "Total number of state transitions taken by flows.", "flow_name", "from", "status", "to"),
		splitDurationSeconds:  histogram("batch_split_duration_seconds", "Duration of split states from fork to join.", "split_name", "status"),
	}

	registry.MustRegister(
		r.jobStartedCounter,
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.stepStartedCounter,
		r.stepDurationSeconds,
		r.stepStatusCounter,
		r.stepReadCount,
		r.stepWriteCount,
		r.stepFilterCount,
		r.stepCommitCount,
		r.stepRollbackCount,
		r.flowTransitionCounter,
		r.splitDurationSeconds,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart records the start of a JobExecution.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobStartedCounter.WithLabelValues(execution.JobName).Inc()
	logger.Debugf("Metrics: Job '%s' started.", execution.JobName)
}

// RecordJobEnd records the end of a JobExecution.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	status := execution.GetStatus().String()
	r.jobStatusCounter.WithLabelValues(execution.JobName, status).Inc()

	duration, ok := elapsed(execution.StartTime, execution.EndTime)
	if !ok {
		return
	}
	r.jobDurationSeconds.WithLabelValues(
		execution.JobName,
		status,
		execution.GetExitStatus().ExitCode,
	).Observe(duration.Seconds())

	logger.Debugf("Metrics: Job '%s' ended. Duration: %.3fs", execution.JobName, duration.Seconds())
}

// RecordStepStart records the start of a StepExecution.
func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.stepStartedCounter.WithLabelValues(jobNameOf(execution), execution.StepName).Inc()
	logger.Debugf("Metrics: Step '%s' started.", execution.StepName)
}

// RecordStepEnd records the end of a StepExecution together with its final counts.
// The end time defaults to now when the step has not been marked as ended yet.
func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	jobName := jobNameOf(execution)
	stepName := execution.StepName
	status := execution.Status.String()

	r.stepStatusCounter.WithLabelValues(jobName, stepName, status).Inc()
	r.stepReadCount.WithLabelValues(jobName, stepName).Add(float64(execution.ReadCount))
	r.stepWriteCount.WithLabelValues(jobName, stepName).Add(float64(execution.WriteCount))
	r.stepFilterCount.WithLabelValues(jobName, stepName).Add(float64(execution.FilterCount))
	r.stepCommitCount.WithLabelValues(jobName, stepName).Add(float64(execution.CommitCount))
	r.stepRollbackCount.WithLabelValues(jobName, stepName).Add(float64(execution.RollbackCount))

	duration, ok := elapsed(execution.StartTime, execution.EndTime)
	if !ok {
		return
	}
	r.stepDurationSeconds.WithLabelValues(jobName, stepName, status, execution.ExitStatus.ExitCode).Observe(duration.Seconds())

	logger.Debugf("Metrics: Step '%s' ended. Duration: %.3fs", stepName, duration.Seconds())
}

// RecordFlowTransition counts a transition taken by a flow.
func (r *PrometheusRecorder) RecordFlowTransition(ctx context.Context, flowName, from, status, to string) {
	r.flowTransitionCounter.WithLabelValues(flowName, from, status, to).Inc()
}

// RecordSplit observes the duration of a split.
func (r *PrometheusRecorder) RecordSplit(ctx context.Context, splitName string, flows int, status string, duration time.Duration) {
	r.splitDurationSeconds.WithLabelValues(splitName, status).Observe(duration.Seconds())
	logger.Debugf("Metrics: Split '%s' joined %d flows with status %s in %.3fs", splitName, flows, status, duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)

func jobNameOf(execution *model.StepExecution) string {
	if execution.JobExecution == nil {
		return ""
	}
	return execution.JobExecution.JobName
}

func elapsed(start, end *time.Time) (time.Duration, bool) {
	if start == nil {
		return 0, false
	}
	if end == nil {
		return time.Since(*start), true
	}
	return end.Sub(*start), true
}
