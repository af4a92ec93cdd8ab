package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/quorumhq/quorum/internal/logger"
	"github.com/quorumhq/quorum/internal/orchestrator"
)

// writeSSE drains a run stream and writes each event as one SSE frame.
// After a client disconnect it keeps draining without writing so the
// orchestrator's blocking sends are never stranded; the run finishes and
// its aggregate stays usable.
func writeSSE(w http.ResponseWriter, stream *orchestrator.Stream, log *logger.Logger) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)

	clientGone := false
	for event := range stream.Events() {
		if clientGone {
			continue
		}
		if err := writeSSEEvent(w, event); err != nil {
			log.Debug("client disconnected mid-stream, draining remaining events",
				slog.String("error", err.Error()))
			clientGone = true
			continue
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes one "event: name\ndata: {json}\n\n" frame as a
// single write so concurrent event producers can never interleave frames.
func writeSSEEvent(w io.Writer, event orchestrator.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data)
	return err
}
