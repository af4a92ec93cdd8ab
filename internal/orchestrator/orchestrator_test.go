package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quorumhq/quorum/internal/llm"
	"github.com/quorumhq/quorum/internal/logger"
	"github.com/quorumhq/quorum/internal/metrics"
	"github.com/quorumhq/quorum/internal/search"
)

const synthesisModel = "anthropic/claude-sonnet-4.5"

// scriptedModel is one model's canned behavior.
type scriptedModel struct {
	chunks []string
	err    error
	// blockUntilCancel makes the call hang until the context expires,
	// then return the context error.
	blockUntilCancel bool
}

// scriptedClient is an llm.Client emulator with per-model scripts. It
// records every prompt it receives.
type scriptedClient struct {
	mu      sync.Mutex
	models  map[string]scriptedModel
	prompts map[string][]string
	// barrier, when set, makes every non-synthesis call wait until all
	// expected calls have started. Proves calls run concurrently.
	barrier *sync.WaitGroup
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{
		models:  make(map[string]scriptedModel),
		prompts: make(map[string][]string),
	}
}

func (c *scriptedClient) script(model string, s scriptedModel) {
	c.models[model] = s
}

func (c *scriptedClient) recordPrompt(model, prompt string) scriptedModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts[model] = append(c.prompts[model], prompt)
	return c.models[model]
}

func (c *scriptedClient) promptFor(model string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts[model]) == 0 {
		return ""
	}
	return c.prompts[model][0]
}

func (c *scriptedClient) Stream(ctx context.Context, model, prompt string, onChunk llm.ChunkFunc) (string, error) {
	s := c.recordPrompt(model, prompt)

	if c.barrier != nil && model != synthesisModel {
		c.barrier.Done()
		c.barrier.Wait()
	}

	if s.blockUntilCancel {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}

	var full strings.Builder
	for _, chunk := range s.chunks {
		full.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	return full.String(), nil
}

func (c *scriptedClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	return c.Stream(ctx, model, prompt, nil)
}

type staticSearcher struct {
	resp *search.Response
	err  error
}

func (s *staticSearcher) Search(ctx context.Context, query string) (*search.Response, error) {
	return s.resp, s.err
}

func newTestOrchestrator(t *testing.T, client llm.Client, searcher Searcher, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.SynthesisModel == "" {
		cfg.SynthesisModel = synthesisModel
	}
	log := logger.New(logger.Config{Level: slog.LevelError})
	return New(client, llm.NewRegistry(), searcher, log, metrics.New(prometheus.NewRegistry()), cfg)
}

// collect drains a closed stream into a slice.
func collect(t *testing.T, stream *Stream) []Event {
	t.Helper()
	var events []Event
	for event := range stream.Events() {
		events = append(events, event)
	}
	return events
}

func eventsNamed(events []Event, name string) []Event {
	var out []Event
	for _, e := range events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func TestRunQueryAggregatesInRequestOrder(t *testing.T) {
	client := newScriptedClient()
	client.script("openai/gpt-4o", scriptedModel{chunks: []string{"Hello", " world"}})
	client.script("xai/grok-4", scriptedModel{err: errors.New("upstream timeout")})
	client.script(synthesisModel, scriptedModel{chunks: []string{"synthesis"}})

	orch := newTestOrchestrator(t, client, nil, Config{})
	stream := NewStream()
	results := orch.RunQuery(context.Background(), "What is Go?", []string{"openai/gpt-4o", "xai/grok-4"}, stream)

	if len(results) != 2 {
		t.Fatalf("expected 2 aggregate entries, got %d", len(results))
	}
	if results[0].Name != "openai/gpt-4o" || results[1].Name != "xai/grok-4" {
		t.Errorf("aggregate lost request order: %q, %q", results[0].Name, results[1].Name)
	}
	if results[0].Text == nil || *results[0].Text != "Hello world" {
		t.Errorf("expected first entry text %q, got %v", "Hello world", results[0].Text)
	}
	if results[0].Error != nil {
		t.Errorf("unexpected error on first entry: %v", *results[0].Error)
	}
	if results[1].Error == nil || *results[1].Error != "upstream timeout" {
		t.Errorf("expected second entry error %q, got %v", "upstream timeout", results[1].Error)
	}
	if results[1].Text != nil {
		t.Errorf("failed entry must carry no text, got %q", *results[1].Text)
	}
	if results[0].DisplayName != "GPT-4o" {
		t.Errorf("expected display name GPT-4o, got %q", results[0].DisplayName)
	}
}

func TestRunQueryEventEnvelope(t *testing.T) {
	client := newScriptedClient()
	client.script("openai/gpt-4o", scriptedModel{chunks: []string{"a", "b"}})
	client.script(synthesisModel, scriptedModel{chunks: []string{"s1", "s2"}})

	orch := newTestOrchestrator(t, client, nil, Config{})
	stream := NewStream()
	orch.RunQuery(context.Background(), "q", []string{"openai/gpt-4o"}, stream)

	events := collect(t, stream)
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	if events[0].Name != EventSearchStarted {
		t.Errorf("first event must be %s, got %s", EventSearchStarted, events[0].Name)
	}
	if events[1].Name != EventSearchComplete {
		t.Errorf("second event must be %s, got %s", EventSearchComplete, events[1].Name)
	}
	if payload := events[1].Data.(SearchCompletePayload); payload.HasResults {
		t.Error("no searcher configured, hasResults must be false")
	}
	if last := events[len(events)-1]; last.Name != EventDone {
		t.Errorf("last event must be %s, got %s", EventDone, last.Name)
	}

	if got := len(eventsNamed(events, EventModelComplete)); got != 1 {
		t.Errorf("expected exactly 1 model-complete, got %d", got)
	}
	if got := len(eventsNamed(events, EventSynthesisComplete)); got != 1 {
		t.Errorf("expected exactly 1 synthesis-complete, got %d", got)
	}

	// The channel is closed; a second drain returns immediately.
	if _, open := <-stream.Events(); open {
		t.Error("stream must be closed after done")
	}
}

func TestRunQueryChunkConcatenationMatchesFinalText(t *testing.T) {
	chunks := []string{"The ", "quick ", "brown ", "fox"}
	client := newScriptedClient()
	client.script("openai/gpt-4o", scriptedModel{chunks: chunks})
	client.script(synthesisModel, scriptedModel{chunks: []string{"done"}})

	orch := newTestOrchestrator(t, client, nil, Config{})
	stream := NewStream()
	results := orch.RunQuery(context.Background(), "q", []string{"openai/gpt-4o"}, stream)

	var joined strings.Builder
	for _, e := range collect(t, stream) {
		if e.Name != EventModelChunk {
			continue
		}
		payload := e.Data.(ModelChunkPayload)
		if payload.Name != "openai/gpt-4o" {
			t.Errorf("chunk carries wrong correlation key: %q", payload.Name)
		}
		joined.WriteString(payload.Chunk)
	}

	if results[0].Text == nil || joined.String() != *results[0].Text {
		t.Errorf("concatenated chunks %q != final text %v", joined.String(), results[0].Text)
	}
}

func TestRunQueryEmptyModelList(t *testing.T) {
	client := newScriptedClient()
	client.script(synthesisModel, scriptedModel{chunks: []string{"nothing to compare"}})

	orch := newTestOrchestrator(t, client, nil, Config{})
	stream := NewStream()
	results := orch.RunQuery(context.Background(), "q", nil, stream)

	if len(results) != 0 {
		t.Fatalf("expected empty aggregate, got %d entries", len(results))
	}

	events := collect(t, stream)
	if got := len(eventsNamed(events, EventModelComplete)); got != 0 {
		t.Errorf("no models were requested, got %d model-complete events", got)
	}
	// The run still completes its full envelope.
	if got := len(eventsNamed(events, EventSynthesisComplete)); got != 1 {
		t.Errorf("expected synthesis-complete, got %d", got)
	}
	if got := len(eventsNamed(events, EventDone)); got != 1 {
		t.Errorf("expected done, got %d", got)
	}

	// The synthesizer is told there was nothing to compare.
	prompt := client.promptFor(synthesisModel)
	if !strings.Contains(prompt, "No model responses were collected") {
		t.Errorf("synthesis prompt missing empty-aggregate note:\n%s", prompt)
	}
}

func TestRunQuerySearchFailureDegradesToPlainPrompt(t *testing.T) {
	client := newScriptedClient()
	client.script("openai/gpt-4o", scriptedModel{chunks: []string{"answer"}})
	client.script(synthesisModel, scriptedModel{chunks: []string{"s"}})

	searcher := &staticSearcher{err: errors.New("tavily returned status 500")}
	orch := newTestOrchestrator(t, client, searcher, Config{})
	stream := NewStream()
	orch.RunQuery(context.Background(), "latest Go release", []string{"openai/gpt-4o"}, stream)

	events := collect(t, stream)
	complete := eventsNamed(events, EventSearchComplete)
	if len(complete) != 1 {
		t.Fatalf("expected 1 search-complete, got %d", len(complete))
	}
	if complete[0].Data.(SearchCompletePayload).HasResults {
		t.Error("failed search must report hasResults=false")
	}

	if got := client.promptFor("openai/gpt-4o"); got != "latest Go release" {
		t.Errorf("prompt must be unmodified on search failure, got %q", got)
	}
}

func TestRunQuerySearchEnrichesEveryPrompt(t *testing.T) {
	client := newScriptedClient()
	client.script("openai/gpt-4o", scriptedModel{chunks: []string{"a"}})
	client.script("xai/grok-4", scriptedModel{chunks: []string{"b"}})
	client.script(synthesisModel, scriptedModel{chunks: []string{"s"}})

	searcher := &staticSearcher{resp: &search.Response{
		Answer: "Go 1.24 is out.",
		Results: []search.Result{
			{Title: "Go release notes", URL: "https://go.dev/doc", Content: "Go 1.24 released."},
		},
	}}
	orch := newTestOrchestrator(t, client, searcher, Config{})
	stream := NewStream()
	orch.RunQuery(context.Background(), "latest Go release", []string{"openai/gpt-4o", "xai/grok-4"}, stream)

	events := collect(t, stream)
	if !eventsNamed(events, EventSearchComplete)[0].Data.(SearchCompletePayload).HasResults {
		t.Error("successful search must report hasResults=true")
	}

	for _, model := range []string{"openai/gpt-4o", "xai/grok-4"} {
		prompt := client.promptFor(model)
		if !strings.HasPrefix(prompt, "latest Go release") {
			t.Errorf("%s prompt must start with the user query, got %q", model, prompt)
		}
		if !strings.Contains(prompt, "WEB SEARCH RESULTS") {
			t.Errorf("%s prompt missing web context block", model)
		}
		if !strings.Contains(prompt, "Go 1.24 is out.") {
			t.Errorf("%s prompt missing search summary", model)
		}
	}
}

func TestRunQuerySynthesisFailureIsNonFatal(t *testing.T) {
	client := newScriptedClient()
	client.script("openai/gpt-4o", scriptedModel{chunks: []string{"answer"}})
	client.script(synthesisModel, scriptedModel{err: errors.New("synthesizer unavailable")})

	orch := newTestOrchestrator(t, client, nil, Config{})
	stream := NewStream()
	results := orch.RunQuery(context.Background(), "q", []string{"openai/gpt-4o"}, stream)

	if results[0].Text == nil || *results[0].Text != "answer" {
		t.Errorf("aggregate must survive synthesis failure, got %v", results[0].Text)
	}

	events := collect(t, stream)
	complete := eventsNamed(events, EventSynthesisComplete)
	if len(complete) != 1 {
		t.Fatalf("expected 1 synthesis-complete, got %d", len(complete))
	}
	if complete[0].Data.(SynthesisCompletePayload).Text != nil {
		t.Error("failed synthesis must report text=null")
	}
	if events[len(events)-1].Name != EventDone {
		t.Error("done must still terminate the stream")
	}
}

func TestRunQueryModelTimeoutBecomesFailureEntry(t *testing.T) {
	timeout := 20 * time.Millisecond
	client := newScriptedClient()
	client.script("openai/gpt-4o", scriptedModel{blockUntilCancel: true})
	client.script(synthesisModel, scriptedModel{chunks: []string{"s"}})

	orch := newTestOrchestrator(t, client, nil, Config{ModelTimeout: timeout})
	stream := NewStream()
	results := orch.RunQuery(context.Background(), "q", []string{"openai/gpt-4o"}, stream)

	if results[0].Error == nil {
		t.Fatal("expected a timeout failure entry")
	}
	want := fmt.Sprintf("model timed out after %s", timeout)
	if *results[0].Error != want {
		t.Errorf("expected error %q, got %q", want, *results[0].Error)
	}
	collect(t, stream)
}

func TestRunQuerySlowModelDoesNotReorderAggregate(t *testing.T) {
	// The first model finishes last on the wall clock; the aggregate
	// still lists it first. Run it a few times to shake out scheduling
	// luck.
	for i := 0; i < 5; i++ {
		client := newScriptedClient()
		client.script("slow", scriptedModel{chunks: []string{"slow answer"}})
		client.script("fast", scriptedModel{chunks: []string{"fast answer"}})
		client.script(synthesisModel, scriptedModel{chunks: []string{"s"}})
		client.barrier = &sync.WaitGroup{}
		client.barrier.Add(2)

		orch := newTestOrchestrator(t, client, nil, Config{})
		stream := NewStream()
		results := orch.RunQuery(context.Background(), "q", []string{"slow", "fast"}, stream)
		collect(t, stream)

		if results[0].Name != "slow" || results[1].Name != "fast" {
			t.Fatalf("run %d: aggregate order broke: %q, %q", i, results[0].Name, results[1].Name)
		}
	}
}

func taskFixture() []ResearchTask {
	return []ResearchTask{
		{ID: "task-1", Title: "Technical approaches", Description: "How it works", Prompt: "Research the technical side."},
		{ID: "task-2", Title: "Market landscape", Description: "Who uses it", Prompt: "Research adoption."},
	}
}

func TestRunTaskQueryFlatPoolRunsAllInvocationsConcurrently(t *testing.T) {
	client := newScriptedClient()
	client.script("m1", scriptedModel{chunks: []string{"r1"}})
	client.script("m2", scriptedModel{chunks: []string{"r2"}})
	client.script("m3", scriptedModel{chunks: []string{"r3"}})
	client.script(synthesisModel, scriptedModel{chunks: []string{"s"}})

	// All three invocations must be in flight at once or the barrier
	// deadlocks: a model on task-2 never waits for task-1 to finish.
	client.barrier = &sync.WaitGroup{}
	client.barrier.Add(3)

	assignments := map[string][]string{
		"task-1": {"m1", "m2"},
		"task-2": {"m3"},
	}

	orch := newTestOrchestrator(t, client, nil, Config{})
	stream := NewStream()

	done := make(chan []AggregateResult, 1)
	go func() {
		done <- orch.RunTaskQuery(context.Background(), taskFixture(), assignments, "original question", stream)
	}()
	collect(t, stream)

	var results []AggregateResult
	select {
	case results = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task run deadlocked; invocations are not a flat pool")
	}

	want := []string{"m1", "m2", "m3"}
	if len(results) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(results))
	}
	for i, name := range want {
		if results[i].Name != name {
			t.Errorf("entry %d: expected %q, got %q", i, name, results[i].Name)
		}
	}
}

func TestRunTaskQueryUsesEachTasksPrompt(t *testing.T) {
	client := newScriptedClient()
	client.script("m1", scriptedModel{chunks: []string{"r1"}})
	client.script("m2", scriptedModel{chunks: []string{"r2"}})
	client.script(synthesisModel, scriptedModel{chunks: []string{"s"}})

	assignments := map[string][]string{
		"task-1": {"m1"},
		"task-2": {"m2"},
	}

	orch := newTestOrchestrator(t, client, nil, Config{})
	stream := NewStream()
	orch.RunTaskQuery(context.Background(), taskFixture(), assignments, "original question", stream)
	collect(t, stream)

	if got := client.promptFor("m1"); got != "Research the technical side." {
		t.Errorf("m1 received wrong prompt: %q", got)
	}
	if got := client.promptFor("m2"); got != "Research adoption." {
		t.Errorf("m2 received wrong prompt: %q", got)
	}

	// Cross-task synthesis groups responses under their task headings.
	synthesis := client.promptFor(synthesisModel)
	for _, fragment := range []string{"original question", "Technical approaches", "Market landscape", "r1", "r2"} {
		if !strings.Contains(synthesis, fragment) {
			t.Errorf("task synthesis prompt missing %q", fragment)
		}
	}
}

func TestRunTaskQueryTaskWithNoAssignmentsIsNoted(t *testing.T) {
	client := newScriptedClient()
	client.script("m1", scriptedModel{chunks: []string{"r1"}})
	client.script(synthesisModel, scriptedModel{chunks: []string{"s"}})

	assignments := map[string][]string{
		"task-1": {"m1"},
		"task-2": {},
	}

	orch := newTestOrchestrator(t, client, nil, Config{})
	stream := NewStream()
	results := orch.RunTaskQuery(context.Background(), taskFixture(), assignments, "q", stream)
	collect(t, stream)

	if len(results) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(results))
	}
	if !strings.Contains(client.promptFor(synthesisModel), "no models were assigned to this task") {
		t.Error("synthesis prompt must note the unassigned task")
	}
}

func TestBuildSynthesisPromptEmbedsFailuresVerbatim(t *testing.T) {
	text := "a fine answer"
	errMsg := "model timed out after 5m0s"
	prompt := buildSynthesisPrompt("q", []AggregateResult{
		{Name: "openai/gpt-4o", DisplayName: "GPT-4o", Text: &text},
		{Name: "xai/grok-4", DisplayName: "Grok 4", Error: &errMsg},
	})

	for _, fragment := range []string{"GPT-4o", "a fine answer", "Grok 4", "Error: model timed out after 5m0s"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("synthesis prompt missing %q", fragment)
		}
	}
	if !strings.Contains(prompt, "responses from 2 different AI models") {
		t.Error("synthesis prompt missing model count")
	}
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	stream := NewStream()
	stream.Emit("model-chunk", ModelChunkPayload{Name: "m", Chunk: "x"})
	stream.Close()
	stream.Close()

	events := collect(t, stream)
	if len(events) != 1 {
		t.Fatalf("expected the buffered event to survive close, got %d", len(events))
	}
}
