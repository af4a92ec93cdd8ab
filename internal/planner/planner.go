package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/quorumhq/quorum/internal/llm"
	"github.com/quorumhq/quorum/internal/logger"
	"github.com/quorumhq/quorum/internal/orchestrator"
)

// ErrUnparseablePlan reports that the planning model's output could not
// be parsed into a task list. This is the one hard, recoverable error in
// the pipeline: the caller retries planning without losing the original
// query and answers.
var ErrUnparseablePlan = errors.New("planner: model output is not a valid research plan")

// blankAnswer is substituted for clarifying answers the user left empty.
const blankAnswer = "No answer provided"

// Planner turns a research query into clarifying questions and a set of
// complementary research tasks via blocking (non-streamed) model calls.
type Planner struct {
	llm        llm.Client
	logger     *logger.Logger
	model      string
	planSchema string
}

// New creates a planner that uses the given model for both question
// generation and plan generation.
func New(client llm.Client, log *logger.Logger, model string) *Planner {
	return &Planner{
		llm:        client,
		logger:     log.WithComponent("planner"),
		model:      model,
		planSchema: reflectPlanSchema(),
	}
}

// planDocument is the structured output expected from the planning call.
// Its JSON Schema is embedded in the planning prompt.
type planDocument struct {
	Tasks []taskDocument `json:"tasks"`
}

type taskDocument struct {
	ID          string `json:"id" jsonschema:"description=Stable task identifier such as task-1"`
	Title       string `json:"title" jsonschema:"description=Brief title (4-6 words)"`
	Description string `json:"description" jsonschema:"description=What this task focuses on (1-2 sentences)"`
	Prompt      string `json:"prompt" jsonschema:"description=The specific research prompt for the AI model"`
}

func reflectPlanSchema() string {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema, err := json.MarshalIndent(reflector.Reflect(&planDocument{}), "", "  ")
	if err != nil {
		// Reflection of a static type cannot fail at runtime; keep the
		// prompt usable regardless.
		return "{}"
	}
	return string(schema)
}

// ClarifyingQuestions generates 3-4 clarifying questions for the query.
// Any failure (call or parse) degrades to an empty list; the run proceeds
// without clarification rather than blocking.
func (p *Planner) ClarifyingQuestions(ctx context.Context, query string) []string {
	prompt := fmt.Sprintf(`You are a research assistant. A user wants to research: %q

Generate 3-4 clarifying questions that would help refine this research query and get better, more targeted results.

Focus on:
- Timeframe (if relevant)
- Specific aspects or focus areas
- Depth vs breadth
- Target audience or use case
- Geographic scope (if relevant)

Return ONLY a JSON array of questions, each as a simple string. Example format:
["Question 1?", "Question 2?", "Question 3?"]

Do not include any other text or explanation.`, query)

	text, err := p.llm.Complete(ctx, p.model, prompt)
	if err != nil {
		p.logger.WithContext(ctx).Warn("clarifying question generation failed",
			slog.String("error", err.Error()))
		return []string{}
	}

	var questions []string
	if err := json.Unmarshal([]byte(extractJSONArray(text)), &questions); err != nil {
		p.logger.WithContext(ctx).Warn("clarifying questions were not valid JSON",
			slog.String("error", err.Error()))
		return []string{}
	}

	return questions
}

// ResearchPlan converts the query and clarifying answers into 3-4
// complementary research tasks. Blank answers are passed through as
// "No answer provided". Unparseable model output returns
// ErrUnparseablePlan so the caller can regenerate.
func (p *Planner) ResearchPlan(ctx context.Context, query string, answers []string) ([]orchestrator.ResearchTask, error) {
	prompt := p.buildPlanPrompt(query, answers)

	text, err := p.llm.Complete(ctx, p.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("planner: plan generation call failed: %w", err)
	}

	var doc planDocument
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &doc); err != nil {
		p.logger.WithContext(ctx).Warn("plan output did not parse",
			slog.String("error", err.Error()))
		return nil, ErrUnparseablePlan
	}
	if len(doc.Tasks) == 0 {
		return nil, ErrUnparseablePlan
	}

	tasks := make([]orchestrator.ResearchTask, len(doc.Tasks))
	for i, t := range doc.Tasks {
		if t.Prompt == "" {
			return nil, ErrUnparseablePlan
		}
		id := t.ID
		if id == "" {
			id = fmt.Sprintf("task-%d", i+1)
		}
		tasks[i] = orchestrator.ResearchTask{
			ID:          id,
			Title:       t.Title,
			Description: t.Description,
			Prompt:      t.Prompt,
		}
	}

	p.logger.WithContext(ctx).Info("research plan generated", slog.Int("tasks", len(tasks)))
	return tasks, nil
}

func (p *Planner) buildPlanPrompt(query string, answers []string) string {
	var contextSection strings.Builder
	if len(answers) > 0 {
		contextSection.WriteString("\n\nUser provided context:\n")
		for i, a := range answers {
			if strings.TrimSpace(a) == "" {
				a = blankAnswer
			}
			fmt.Fprintf(&contextSection, "%d. %s\n", i+1, a)
		}
	}

	return fmt.Sprintf(`You are a research strategy expert. Given this research question, create a strategic plan that breaks down the research into 3-4 distinct research tasks that different AI models can work on in parallel.

Research Question: %s%s

Create a research plan with 3-4 research tasks. Each task should:
- Focus on a specific angle or aspect of the question
- Be complementary to other tasks (not overlapping)
- Be clearly defined so an AI model knows exactly what to research

Return ONLY a JSON object matching this JSON Schema:

%s

Example for "How do I customize Shopify sites?":
{
  "tasks": [
    {
      "id": "task-1",
      "title": "Technical customization approaches",
      "description": "Research the technical methods and tools available for Shopify customization",
      "prompt": "Research and explain the different technical approaches to customizing Shopify sites, including Liquid templating, theme development, and app development. Focus on what's technically possible and the skill levels required."
    },
    {
      "id": "task-2",
      "title": "No-code solutions and apps",
      "description": "Explore user-friendly customization options that don't require coding",
      "prompt": "Research no-code and low-code solutions for Shopify customization, including drag-and-drop builders, popular apps, and the Shopify theme editor. Focus on what non-technical users can accomplish."
    },
    {
      "id": "task-3",
      "title": "Best practices and examples",
      "description": "Find real-world examples and industry best practices",
      "prompt": "Research best practices for Shopify customization, common pitfalls to avoid, and showcase successful examples of customized Shopify stores. Focus on practical guidance and proven approaches."
    }
  ]
}

Now create the research plan:`, query, contextSection.String(), p.planSchema)
}
