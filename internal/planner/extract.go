package planner

import (
	"strings"
)

// Models wrap structured output in markdown fences or surround it with
// prose. These helpers cut out the JSON document before unmarshaling.

func extractJSONObject(text string) string {
	return extractDelimited(stripFences(text), '{', '}')
}

func extractJSONArray(text string) string {
	return extractDelimited(stripFences(text), '[', ']')
}

func extractDelimited(text string, opening, closing byte) string {
	start := strings.IndexByte(text, opening)
	end := strings.LastIndexByte(text, closing)
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}
