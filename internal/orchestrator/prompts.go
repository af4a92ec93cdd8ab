package orchestrator

import (
	"fmt"
	"strings"
)

// buildSynthesisPrompt embeds every aggregate entry, errors included, so
// the synthesizer can note unavailable models as a caveat instead of
// hiding them.
func buildSynthesisPrompt(question string, results []AggregateResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a research analyst. A user asked: %q\n\n", question)

	if len(results) == 0 {
		b.WriteString("No model responses were collected for this question.\n\n")
		b.WriteString("State clearly that no comparison was possible, then answer the question as well as you can from your own knowledge, noting that the answer was not cross-checked against other models.")
		return b.String()
	}

	fmt.Fprintf(&b, "Here are responses from %d different AI models:\n", len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "\n**%s:**\n%s\n", r.DisplayName, resultBody(r))
	}

	b.WriteString(`
Your task:
1. Compare and contrast these responses
2. Identify agreements and disagreements
3. Evaluate the quality and accuracy of each response
4. Synthesize the best possible answer that combines their strengths
5. Highlight any important nuances or caveats

If some or all models failed with errors, note those models as unavailable instead of speculating about what they would have said. If every model failed, state that no comparison was possible.

Provide a comprehensive, well-researched answer.`)

	return b.String()
}

// buildTaskSynthesisPrompt groups each task's responses under its title
// and description for the cross-task synthesis call.
func buildTaskSynthesisPrompt(originalQuery string, tasks []ResearchTask, byTask map[string][]AggregateResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a research analyst. A user asked: %q\n\n", originalQuery)
	b.WriteString("We broke this research into specialized tasks and assigned different AI models to focus on specific aspects:\n")

	for _, task := range tasks {
		fmt.Fprintf(&b, "\n**Task: %s**\nFocus: %s\n\nModels assigned to this task:\n", task.Title, task.Description)

		responses := byTask[task.ID]
		if len(responses) == 0 {
			b.WriteString("(no models were assigned to this task)\n")
			continue
		}
		for _, r := range responses {
			fmt.Fprintf(&b, "\n**%s:**\n%s\n", r.DisplayName, resultBody(r))
		}
	}

	b.WriteString(`
Your task:
1. Synthesize the findings from each specialized research task
2. Identify how the different task findings complement each other
3. Note any agreements or disagreements between models on the same task
4. Combine insights to provide a comprehensive answer to the original question
5. Highlight important nuances or caveats

Provide a well-structured, comprehensive answer that draws from all research tasks.`)

	return b.String()
}

func resultBody(r AggregateResult) string {
	if r.Error != nil {
		return "Error: " + *r.Error
	}
	if r.Text != nil {
		return *r.Text
	}
	return ""
}
