package orchestrator

// AggregateResult is the finalized record for one model invocation.
// Name is the opaque model identifier (the correlation key); DisplayName
// is derived from the registry for presentation only. Exactly one of Text
// and Error is non-nil. Entries keep the caller's request order, never
// completion order.
type AggregateResult struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"displayName"`
	Text        *string `json:"text"`
	Error       *string `json:"error"`
}

// ResearchTask is one complementary sub-question produced by the planner,
// with its own directive prompt. Immutable once created; user edits happen
// before the run starts.
type ResearchTask struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}
