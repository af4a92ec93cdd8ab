package search

import (
	"fmt"
	"strings"
)

// Context formats the response as the prompt block appended to model
// prompts. Returns the empty string when there is nothing usable.
func (r *Response) Context() string {
	if !r.HasResults() {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nWEB SEARCH RESULTS (Current information from the web):\n\n")
	if r.Answer != "" {
		fmt.Fprintf(&b, "Summary: %s\n\n", r.Answer)
	}
	for i, result := range r.Results {
		fmt.Fprintf(&b, "\n[%d] %s\nURL: %s\n%s\n", i+1, result.Title, result.URL, result.Content)
	}
	b.WriteString("\nPlease use this current web information to provide an up-to-date, accurate answer.")
	return b.String()
}
