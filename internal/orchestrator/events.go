package orchestrator

import (
	"sync"
)

// Event names on the run stream, in the order a consumer can expect them.
// Chunk and completion events for different models interleave arbitrarily;
// events for the same model are always in production order.
const (
	EventSearchStarted     = "search-started"
	EventSearchComplete    = "search-complete"
	EventModelChunk        = "model-chunk"
	EventModelComplete     = "model-complete"
	EventSynthesisChunk    = "synthesis-chunk"
	EventSynthesisComplete = "synthesis-complete"
	EventDone              = "done"
)

// Event is one named record on a run stream. Data marshals to a JSON
// object; empty events carry struct{}{}.
type Event struct {
	Name string
	Data interface{}
}

// SearchCompletePayload reports whether augmentation produced results.
type SearchCompletePayload struct {
	HasResults bool `json:"hasResults"`
}

// ModelChunkPayload carries one incremental fragment for one model.
// Name is the opaque model identifier, not the display name; it is the
// correlation key for the whole stream.
type ModelChunkPayload struct {
	Name  string `json:"name"`
	Chunk string `json:"chunk"`
}

// ModelCompletePayload is the terminal event for one model invocation.
// Exactly one of Text and Error is non-nil.
type ModelCompletePayload struct {
	Name  string  `json:"name"`
	Text  *string `json:"text"`
	Error *string `json:"error"`
}

// SynthesisChunkPayload carries one incremental synthesis fragment.
type SynthesisChunkPayload struct {
	Chunk string `json:"chunk"`
}

// SynthesisCompletePayload is the terminal synthesis event. Text is nil
// when the synthesizer call failed.
type SynthesisCompletePayload struct {
	Text *string `json:"text"`
}

// Stream is the append-only event sink for one orchestration run. Sends
// are safe from any number of goroutines and each event is one indivisible
// record. Sends block when the consumer falls behind; nothing is ever
// dropped, so concatenating a model's chunks always reproduces its final
// text.
type Stream struct {
	ch        chan Event
	closeOnce sync.Once
}

// NewStream creates a stream with a small buffer to absorb bursts.
func NewStream() *Stream {
	return &Stream{ch: make(chan Event, 64)}
}

// Emit appends one event to the stream.
func (s *Stream) Emit(name string, data interface{}) {
	s.ch <- Event{Name: name, Data: data}
}

// Events returns the receive side of the stream. The channel is closed
// after the terminal "done" event.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Close marks the stream complete. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}
