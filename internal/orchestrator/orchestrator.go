package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quorumhq/quorum/internal/llm"
	"github.com/quorumhq/quorum/internal/logger"
	"github.com/quorumhq/quorum/internal/metrics"
	"github.com/quorumhq/quorum/internal/search"
)

// Searcher is the web-augmentation collaborator. Any error is treated as
// "no results" and never aborts a run.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Response, error)
}

// Config carries the orchestrator's fixed settings.
type Config struct {
	// SynthesisModel is the designated synthesizer model identifier.
	SynthesisModel string

	// ModelTimeout bounds one model invocation. Zero disables the
	// deadline; a hung provider then stalls the aggregate indefinitely.
	ModelTimeout time.Duration
}

// Orchestrator fans a prompt out to N models concurrently, relays their
// chunks onto a run stream, joins on all terminal states and runs the
// synthesis stage. All inputs are explicit; no ambient state is read.
type Orchestrator struct {
	llm      llm.Client
	registry *llm.Registry
	searcher Searcher // nil disables augmentation
	logger   *logger.Logger
	metrics  *metrics.Metrics
	cfg      Config
}

// New creates an orchestrator. searcher may be nil when web augmentation
// is not configured.
func New(client llm.Client, registry *llm.Registry, searcher Searcher, log *logger.Logger, m *metrics.Metrics, cfg Config) *Orchestrator {
	return &Orchestrator{
		llm:      client,
		registry: registry,
		searcher: searcher,
		logger:   log.WithComponent("orchestrator"),
		metrics:  m,
		cfg:      cfg,
	}
}

// invocation is one unit of fan-out work: a model identifier, the prompt
// it receives, and the task it belongs to (empty outside task runs).
type invocation struct {
	model  string
	prompt string
	taskID string
}

// RunQuery runs the flat fan-out/fan-in pipeline: one optional search
// call, N concurrent model invocations against the (possibly enriched)
// prompt, then synthesis. Events stream out as they arrive; the stream is
// closed after the terminal "done" event. The returned aggregate keeps
// the caller's model order.
func (o *Orchestrator) RunQuery(ctx context.Context, prompt string, modelIDs []string, stream *Stream) []AggregateResult {
	start := time.Now()
	o.metrics.ActiveRuns.Inc()
	defer func() {
		o.metrics.ActiveRuns.Dec()
		o.metrics.RunsTotal.WithLabelValues("query").Inc()
		o.metrics.RunDuration.WithLabelValues("query").Observe(time.Since(start).Seconds())
	}()

	log := o.logger.WithContext(ctx)
	log.Info("starting query run", slog.Int("models", len(modelIDs)))

	webContext := o.augment(ctx, prompt, stream)

	invocations := make([]invocation, len(modelIDs))
	for i, id := range modelIDs {
		invocations[i] = invocation{model: id, prompt: prompt + webContext}
	}

	results := o.fanOut(ctx, invocations, stream)

	o.synthesize(ctx, buildSynthesisPrompt(prompt, results), stream)

	stream.Emit(EventDone, struct{}{})
	stream.Close()

	log.Info("query run finished",
		slog.Int("models", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results
}

// RunTaskQuery runs the task-decomposition pipeline: one shared search
// call for the original query, then every task's assigned models as one
// flat pool of concurrent invocations (a model on task B never waits for
// task A), then a cross-task synthesis grouping responses under their
// task. Assignments map task ID to model identifiers; the caller may pass
// any mapping, not just the round-robin default.
func (o *Orchestrator) RunTaskQuery(ctx context.Context, tasks []ResearchTask, assignments map[string][]string, originalQuery string, stream *Stream) []AggregateResult {
	start := time.Now()
	o.metrics.ActiveRuns.Inc()
	defer func() {
		o.metrics.ActiveRuns.Dec()
		o.metrics.RunsTotal.WithLabelValues("task_query").Inc()
		o.metrics.RunDuration.WithLabelValues("task_query").Observe(time.Since(start).Seconds())
	}()

	log := o.logger.WithContext(ctx)
	log.Info("starting task run", slog.Int("tasks", len(tasks)))

	webContext := o.augment(ctx, originalQuery, stream)

	// Flatten task assignments into one invocation list. Order is task
	// order, then assignment order within a task; that order is the
	// aggregate order.
	var invocations []invocation
	for _, task := range tasks {
		for _, modelID := range assignments[task.ID] {
			invocations = append(invocations, invocation{
				model:  modelID,
				prompt: task.Prompt + webContext,
				taskID: task.ID,
			})
		}
	}

	results := o.fanOut(ctx, invocations, stream)

	byTask := make(map[string][]AggregateResult, len(tasks))
	for i, inv := range invocations {
		byTask[inv.taskID] = append(byTask[inv.taskID], results[i])
	}

	o.synthesize(ctx, buildTaskSynthesisPrompt(originalQuery, tasks, byTask), stream)

	stream.Emit(EventDone, struct{}{})
	stream.Close()

	log.Info("task run finished",
		slog.Int("models", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results
}

// augment performs the single shared web search and returns the context
// block to append to every prompt. Failures are swallowed: the run
// proceeds with the unmodified prompt and search-complete reports
// hasResults=false.
func (o *Orchestrator) augment(ctx context.Context, query string, stream *Stream) string {
	stream.Emit(EventSearchStarted, struct{}{})

	if o.searcher == nil {
		stream.Emit(EventSearchComplete, SearchCompletePayload{HasResults: false})
		return ""
	}

	resp, err := o.searcher.Search(ctx, query)
	if err != nil {
		o.logger.WithContext(ctx).Warn("web augmentation failed, continuing without it",
			slog.String("error", err.Error()))
		o.metrics.SearchRequests.WithLabelValues("error").Inc()
		stream.Emit(EventSearchComplete, SearchCompletePayload{HasResults: false})
		return ""
	}

	o.metrics.SearchRequests.WithLabelValues("success").Inc()
	stream.Emit(EventSearchComplete, SearchCompletePayload{HasResults: resp.HasResults()})
	return resp.Context()
}

// fanOut dispatches every invocation on its own goroutine and joins on
// all of them. Each goroutine owns its own result slot; the only shared
// resource is the stream, which is safe for concurrent appends. One
// model's failure never cancels or delays the others.
func (o *Orchestrator) fanOut(ctx context.Context, invocations []invocation, stream *Stream) []AggregateResult {
	results := make([]AggregateResult, len(invocations))

	var wg sync.WaitGroup
	for i, inv := range invocations {
		wg.Add(1)
		go func(i int, inv invocation) {
			defer wg.Done()
			results[i] = o.invoke(ctx, inv, stream)
		}(i, inv)
	}
	wg.Wait()

	return results
}

// invoke drives one model stream to its terminal state and emits the
// model-chunk / model-complete events for it. Every failure is absorbed
// into the result entry; nothing is thrown past this point.
func (o *Orchestrator) invoke(ctx context.Context, inv invocation, stream *Stream) AggregateResult {
	callCtx := ctx
	if o.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.ModelTimeout)
		defer cancel()
	}

	result := AggregateResult{
		Name:        inv.model,
		DisplayName: o.registry.DisplayName(inv.model),
	}

	text, err := o.llm.Stream(callCtx, inv.model, inv.prompt, func(chunk string) {
		stream.Emit(EventModelChunk, ModelChunkPayload{Name: inv.model, Chunk: chunk})
	})
	if err != nil {
		msg := err.Error()
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("model timed out after %s", o.cfg.ModelTimeout)
		}
		o.logger.WithContext(ctx).Warn("model invocation failed",
			slog.String("model", inv.model),
			slog.String("error", msg))
		o.metrics.ModelInvocations.WithLabelValues(inv.model, "failed").Inc()

		result.Error = &msg
		stream.Emit(EventModelComplete, ModelCompletePayload{Name: inv.model, Error: result.Error})
		return result
	}

	o.metrics.ModelInvocations.WithLabelValues(inv.model, "completed").Inc()
	result.Text = &text
	stream.Emit(EventModelComplete, ModelCompletePayload{Name: inv.model, Text: result.Text})
	return result
}

// synthesize runs the synthesis stage over the finished aggregate.
// Failure is recorded as synthesis-complete {text: null} and is never
// fatal to the run.
func (o *Orchestrator) synthesize(ctx context.Context, prompt string, stream *Stream) {
	callCtx := ctx
	if o.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.ModelTimeout)
		defer cancel()
	}

	text, err := o.llm.Stream(callCtx, o.cfg.SynthesisModel, prompt, func(chunk string) {
		stream.Emit(EventSynthesisChunk, SynthesisChunkPayload{Chunk: chunk})
	})
	if err != nil {
		o.logger.WithContext(ctx).Warn("synthesis failed",
			slog.String("model", o.cfg.SynthesisModel),
			slog.String("error", err.Error()))
		o.metrics.ModelInvocations.WithLabelValues(o.cfg.SynthesisModel, "failed").Inc()
		stream.Emit(EventSynthesisComplete, SynthesisCompletePayload{Text: nil})
		return
	}

	o.metrics.ModelInvocations.WithLabelValues(o.cfg.SynthesisModel, "completed").Inc()
	stream.Emit(EventSynthesisComplete, SynthesisCompletePayload{Text: &text})
}
