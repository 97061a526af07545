// Package orchestration coordinates the specialist agents into one
// widget-building pipeline: routing, optional schema analysis, query /
// filter / chart construction, and merging of the results. It also owns
// conversation compaction.
package orchestration

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bizmatters/agent-builder/widget-studio/internal/agents"
	"github.com/bizmatters/agent-builder/widget-studio/internal/metrics"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

// Progress labels shown in the UI while each agent runs.
const (
	labelAnalyzing = "Analyzing request…"
	labelSchema    = "Analyzing database schema…"
	labelQuery     = "Building SQL query…"
	labelFilters   = "Designing filters…"
	labelChart     = "Configuring chart…"
	labelCompacted = "Compressed chat context"
)

// Request is one pipeline invocation's input.
type Request struct {
	UserMessage string
	State       models.ConversationState
	Widget      *models.Widget
	Schema      *models.Schema
	// CachedAnalysis short-circuits the schema analysis phase entirely when
	// the stored analysis still matches the schema hash.
	CachedAnalysis *agents.SchemaAnalysis
}

// Result is the merged outcome of a successful pipeline invocation. Failure
// of any agent aborts the whole invocation; a Result is all-or-nothing.
type Result struct {
	Message      string
	WidgetUpdate *models.WidgetUpdate
	Filters      []models.FilterSpec
	Removals     []string
	Intent       string

	// State is the conversation the pipeline actually ran on; when Compacted
	// is true it must replace the stored conversation.
	State     models.ConversationState
	Compacted bool

	// SchemaAnalysis and SchemaHash are set only when a fresh analysis was
	// produced this invocation, for the caller to cache.
	SchemaAnalysis *agents.SchemaAnalysis
	SchemaHash     string
}

// Pipeline wires the agents together. It is stateless and safe for
// concurrent use.
type Pipeline struct {
	analyzer       *agents.RequestAnalyzer
	schemaAnalyzer *agents.SchemaAnalyzer
	queryBuilder   *agents.QueryBuilder
	filterBuilder  *agents.FilterBuilder
	chartBuilder   *agents.ChartBuilder
	compactor      *Compactor

	tracer  trace.Tracer
	metrics *metrics.PipelineMetrics
}

func NewPipeline(
	analyzer *agents.RequestAnalyzer,
	schemaAnalyzer *agents.SchemaAnalyzer,
	queryBuilder *agents.QueryBuilder,
	filterBuilder *agents.FilterBuilder,
	chartBuilder *agents.ChartBuilder,
	compactor *Compactor,
	pm *metrics.PipelineMetrics,
) *Pipeline {
	return &Pipeline{
		analyzer:       analyzer,
		schemaAnalyzer: schemaAnalyzer,
		queryBuilder:   queryBuilder,
		filterBuilder:  filterBuilder,
		chartBuilder:   chartBuilder,
		compactor:      compactor,
		tracer:         otel.Tracer("orchestration"),
		metrics:        pm,
	}
}

// Run executes the pipeline without progress events.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	return p.execute(ctx, req, func(models.ProgressEvent) {})
}

// RunStream executes the pipeline and streams progress events. The channel
// is closed when the invocation finishes; after a failure the only event
// following the last agent_start is a single error event.
func (p *Pipeline) RunStream(ctx context.Context, req Request) (<-chan models.ProgressEvent, <-chan *Result) {
	events := make(chan models.ProgressEvent, 8)
	results := make(chan *Result, 1)

	emit := func(ev models.ProgressEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(events)
		defer close(results)

		result, err := p.execute(ctx, req, emit)
		if err != nil {
			emit(models.ErrorEvent(userFacingError(err)))
			return
		}
		emit(models.ProgressEvent{Kind: models.EventResult, Data: models.ResultData{
			Message:      result.Message,
			WidgetUpdate: result.WidgetUpdate,
			Filters:      result.Filters,
		}})
		results <- result
	}()

	return events, results
}

func (p *Pipeline) execute(ctx context.Context, req Request, emit func(models.ProgressEvent)) (result *Result, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.execute")
	defer span.End()

	widgetID := ""
	if req.Widget != nil {
		widgetID = req.Widget.ID
	}
	start := time.Now()
	if p.metrics != nil {
		p.metrics.RecordRunStarted(ctx, widgetID)
	}
	defer func() {
		if p.metrics == nil {
			return
		}
		if err != nil {
			agent, kind := failureAttrs(err)
			p.metrics.RecordRunFailed(ctx, widgetID, agent, kind, time.Since(start))
		} else {
			p.metrics.RecordRunCompleted(ctx, widgetID, result.Intent, time.Since(start))
		}
	}()

	// Compaction runs at most once, before any agent sees the conversation.
	state, compacted, err := p.compactor.MaybeCompact(ctx, req.State)
	if err != nil {
		return nil, err
	}
	if compacted {
		emit(models.ProgressEvent{Kind: models.EventAgentDone, Data: models.AgentDoneData{
			Agent: agents.NameSummarizer,
			Label: labelCompacted,
			Step:  0,
		}})
	}
	history := state.Effective()
	hasConnection := req.Schema != nil

	step := 1
	emit(models.AgentStart(agents.NameRequestAnalyzer, labelAnalyzing, step))
	routing, err := timed(ctx, p.metrics, agents.NameRequestAnalyzer, func(ctx context.Context) (agents.Routing, error) {
		return p.analyzer.Run(ctx, req.UserMessage, history, req.Widget, hasConnection)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("pipeline.intent", routing.Intent))
	log.Printf("[pipeline] intent=%s query=%t filters=%t chart=%t schema=%t",
		routing.Intent, routing.NeedsQuery, routing.NeedsFilters, routing.NeedsChart, routing.NeedsSchemaAnalysis)
	emit(models.ProgressEvent{Kind: models.EventAgentDone, Data: models.AgentDoneData{
		Agent:   agents.NameRequestAnalyzer,
		Step:    step,
		Summary: routing.Summary,
	}})

	// Greetings and questions are answered directly, with no widget change.
	if !routing.NeedsAny() {
		return &Result{
			Message:   replyOnlyMessage(routing),
			Filters:   []models.FilterSpec{},
			Intent:    routing.Intent,
			State:     state,
			Compacted: compacted,
		}, nil
	}

	var analysis *agents.SchemaAnalysis
	var freshAnalysis *agents.SchemaAnalysis
	var schemaHash string
	if routing.NeedsSchemaAnalysis && req.Schema != nil {
		if req.CachedAnalysis != nil {
			analysis = req.CachedAnalysis
		} else {
			step++
			emit(models.AgentStart(agents.NameSchemaAnalyzer, labelSchema, step))
			analysis, err = timed(ctx, p.metrics, agents.NameSchemaAnalyzer, func(ctx context.Context) (*agents.SchemaAnalysis, error) {
				return p.schemaAnalyzer.Run(ctx, req.Schema)
			})
			if err != nil {
				return nil, err
			}
			freshAnalysis = analysis
			schemaHash = agents.HashSchema(req.Schema)
			emit(models.AgentDone(agents.NameSchemaAnalyzer, step))
		}
	}

	queryTemplate := ""
	if req.Widget != nil {
		queryTemplate = req.Widget.QueryTemplate
	}
	var queryResult *agents.QueryResult
	var outputColumns []agents.OutputColumn
	if routing.NeedsQuery {
		step++
		emit(models.AgentStart(agents.NameQueryBuilder, labelQuery, step))
		queryResult, err = timed(ctx, p.metrics, agents.NameQueryBuilder, func(ctx context.Context) (*agents.QueryResult, error) {
			return p.queryBuilder.Run(ctx, req.UserMessage, routing.Summary, history, req.Widget, analysis)
		})
		if err != nil {
			return nil, err
		}
		if queryResult.QueryTemplate != "" {
			queryTemplate = queryResult.QueryTemplate
		}
		outputColumns = queryResult.OutputColumns
		emit(models.AgentDone(agents.NameQueryBuilder, step))
	}

	var filterResult *agents.FilterResult
	if routing.NeedsFilters {
		step++
		emit(models.AgentStart(agents.NameFilterBuilder, labelFilters, step))
		filterResult, err = timed(ctx, p.metrics, agents.NameFilterBuilder, func(ctx context.Context) (*agents.FilterResult, error) {
			return p.filterBuilder.Run(ctx, req.UserMessage, routing.Summary, queryTemplate, req.Widget, analysis)
		})
		if err != nil {
			return nil, err
		}
		emit(models.AgentDone(agents.NameFilterBuilder, step))
	}

	var chartResult *agents.ChartResult
	if routing.NeedsChart {
		step++
		emit(models.AgentStart(agents.NameChartBuilder, labelChart, step))
		chartResult, err = timed(ctx, p.metrics, agents.NameChartBuilder, func(ctx context.Context) (*agents.ChartResult, error) {
			return p.chartBuilder.Run(ctx, req.UserMessage, routing.Summary, history, req.Widget, outputColumns)
		})
		if err != nil {
			return nil, err
		}
		emit(models.AgentDone(agents.NameChartBuilder, step))
	}

	result = merge(routing, queryResult, filterResult, chartResult)
	result.State = state
	result.Compacted = compacted
	result.SchemaAnalysis = freshAnalysis
	result.SchemaHash = schemaHash
	return result, nil
}

// timed runs one agent call and records its duration.
func timed[T any](ctx context.Context, pm *metrics.PipelineMetrics, agent string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)
	if pm != nil {
		pm.RecordAgentDuration(ctx, agent, time.Since(start))
	}
	return out, err
}

func replyOnlyMessage(routing agents.Routing) string {
	if routing.Message != "" {
		return routing.Message
	}
	if routing.Summary != "" {
		return routing.Summary
	}
	return "OK"
}

func failureAttrs(err error) (agent, kind string) {
	var aerr *agents.Error
	if errors.As(err, &aerr) {
		return aerr.Agent, string(aerr.Kind)
	}
	return "", "internal"
}

// userFacingError maps a pipeline failure to the message emitted on the
// event stream. Internal detail stays in the logs.
func userFacingError(err error) string {
	var aerr *agents.Error
	if errors.As(err, &aerr) {
		switch aerr.Kind {
		case agents.ErrRateLimited:
			return "The AI service is busy right now. Please try again in a moment."
		case agents.ErrTimeout:
			return "The AI service took too long to respond. Please try again."
		}
	}
	log.Printf("[pipeline] run failed: %v", err)
	return "Something went wrong while building the widget. Please try again."
}
