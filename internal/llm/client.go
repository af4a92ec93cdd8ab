package llm

import "context"

// ChunkFunc receives one incremental text fragment from a model stream.
type ChunkFunc func(chunk string)

// Client is the uniform interface to invoke any LLM backend by model
// identifier. Implementations open one upstream connection per call and
// perform no retries; every failure is returned as an error for the caller
// to record.
type Client interface {
	// Stream invokes the model and calls onChunk for every text fragment
	// as it arrives, in order. It returns the full accumulated text on
	// success. A stream that produces zero fragments and ends cleanly is a
	// valid empty success.
	Stream(ctx context.Context, model, prompt string, onChunk ChunkFunc) (string, error)

	// Complete invokes the model without streaming and returns the full
	// response text.
	Complete(ctx context.Context, model, prompt string) (string, error)
}
