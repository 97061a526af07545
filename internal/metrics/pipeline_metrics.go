package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("pipeline-metrics")

// PipelineMetrics provides metrics collection for agent pipeline runs
type PipelineMetrics struct {
	runsStartedCounter    metric.Int64Counter
	runsCompletedCounter  metric.Int64Counter
	runsFailedCounter     metric.Int64Counter
	agentDurationHistogram metric.Float64Histogram
	activeStreamsGauge    metric.Int64UpDownCounter
}

// NewPipelineMetrics creates a new pipeline metrics collector
func NewPipelineMetrics() (*PipelineMetrics, error) {
	runsStartedCounter, err := meter.Int64Counter(
		"widget_studio.pipeline.runs.started",
		metric.WithDescription("Total number of pipeline runs started"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runsCompletedCounter, err := meter.Int64Counter(
		"widget_studio.pipeline.runs.completed",
		metric.WithDescription("Total number of pipeline runs completed successfully"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runsFailedCounter, err := meter.Int64Counter(
		"widget_studio.pipeline.runs.failed",
		metric.WithDescription("Total number of pipeline runs that failed"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	agentDurationHistogram, err := meter.Float64Histogram(
		"widget_studio.pipeline.agent.duration",
		metric.WithDescription("Duration of individual agent invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	activeStreamsGauge, err := meter.Int64UpDownCounter(
		"widget_studio.chat.streams.active",
		metric.WithDescription("Number of currently open chat event streams"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		runsStartedCounter:     runsStartedCounter,
		runsCompletedCounter:   runsCompletedCounter,
		runsFailedCounter:      runsFailedCounter,
		agentDurationHistogram: agentDurationHistogram,
		activeStreamsGauge:     activeStreamsGauge,
	}, nil
}

// RecordRunStarted records a pipeline run beginning
func (pm *PipelineMetrics) RecordRunStarted(ctx context.Context, widgetID string) {
	pm.runsStartedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("widget.id", widgetID),
		),
	)
}

// RecordRunCompleted records a successful pipeline run
func (pm *PipelineMetrics) RecordRunCompleted(ctx context.Context, widgetID, intent string, duration time.Duration) {
	pm.runsCompletedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("widget.id", widgetID),
			attribute.String("intent", intent),
			attribute.String("status", "completed"),
		),
	)
}

// RecordRunFailed records a failed pipeline run
func (pm *PipelineMetrics) RecordRunFailed(ctx context.Context, widgetID, agent, errorKind string, duration time.Duration) {
	pm.runsFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("widget.id", widgetID),
			attribute.String("agent.name", agent),
			attribute.String("status", "failed"),
			attribute.String("error.kind", errorKind),
		),
	)
}

// RecordAgentDuration records how long one agent invocation took
func (pm *PipelineMetrics) RecordAgentDuration(ctx context.Context, agent string, duration time.Duration) {
	pm.agentDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("agent.name", agent),
		),
	)
}

// StreamOpened increments the active stream gauge
func (pm *PipelineMetrics) StreamOpened(ctx context.Context) {
	pm.activeStreamsGauge.Add(ctx, 1)
}

// StreamClosed decrements the active stream gauge
func (pm *PipelineMetrics) StreamClosed(ctx context.Context) {
	pm.activeStreamsGauge.Add(ctx, -1)
}
