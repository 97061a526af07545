package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineMetrics_Creation(t *testing.T) {
	t.Run("successfully create pipeline metrics", func(t *testing.T) {
		metrics, err := NewPipelineMetrics()
		require.NoError(t, err)
		assert.NotNil(t, metrics)
		assert.NotNil(t, metrics.runsStartedCounter)
		assert.NotNil(t, metrics.runsCompletedCounter)
		assert.NotNil(t, metrics.runsFailedCounter)
		assert.NotNil(t, metrics.agentDurationHistogram)
		assert.NotNil(t, metrics.activeStreamsGauge)
	})
}

func TestPipelineMetrics_RecordRunLifecycle(t *testing.T) {
	metrics, err := NewPipelineMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("record completed run", func(t *testing.T) {
		assert.NotPanics(t, func() {
			metrics.RecordRunStarted(ctx, "widget-123")
			metrics.RecordAgentDuration(ctx, "request_analyzer", 800*time.Millisecond)
			metrics.RecordAgentDuration(ctx, "query_builder", 3*time.Second)
			metrics.RecordRunCompleted(ctx, "widget-123", "create_chart", 5*time.Second)
		})
	})

	t.Run("record failed run", func(t *testing.T) {
		assert.NotPanics(t, func() {
			metrics.RecordRunStarted(ctx, "widget-456")
			metrics.RecordRunFailed(ctx, "widget-456", "chart_builder", "timeout", 30*time.Second)
		})
	})
}

func TestPipelineMetrics_StreamGauge(t *testing.T) {
	metrics, err := NewPipelineMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.StreamOpened(ctx)
		metrics.StreamClosed(ctx)
	})
}

func TestPipelineMetrics_ConcurrentRecording(t *testing.T) {
	metrics, err := NewPipelineMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			widgetID := fmt.Sprintf("widget-%d", id)
			metrics.RecordRunStarted(ctx, widgetID)
			duration := time.Duration(id) * 100 * time.Millisecond
			if id%2 == 0 {
				metrics.RecordRunCompleted(ctx, widgetID, "create_chart", duration)
			} else {
				metrics.RecordRunFailed(ctx, widgetID, "query_builder", "rate_limited", duration)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
