package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quorumhq/quorum/internal/logger"
	"github.com/quorumhq/quorum/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced at the HTTP middleware layer.
		return true
	},
}

// wsFrame is one run event as a WebSocket text message.
type wsFrame struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// QueryWS mirrors the SSE query endpoint over a WebSocket: the client
// sends one QueryRequest frame, the server answers with one frame per
// run event and closes after "done".
func (h *Handler) QueryWS(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close() //nolint:errcheck

	var req QueryRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(wsFrame{Event: "error", Payload: gin.H{"error": "invalid request frame"}})
		return
	}
	if req.Prompt == "" {
		_ = conn.WriteJSON(wsFrame{Event: "error", Payload: gin.H{"error": "prompt is required"}})
		return
	}

	ctx := logger.WithRunID(c.Request.Context(), uuid.New().String())
	stream := orchestrator.NewStream()
	go h.orch.RunQuery(ctx, req.Prompt, req.Models, stream)

	// Single writer loop; the stream serializes concurrent producers, so
	// frames are never interleaved.
	clientGone := false
	for event := range stream.Events() {
		if clientGone {
			continue
		}
		payload, err := json.Marshal(wsFrame{Event: event.Name, Payload: event.Data})
		if err != nil {
			log.Error("failed to encode event frame",
				slog.String("event", event.Name),
				slog.String("error", err.Error()))
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Debug("websocket client disconnected mid-stream, draining remaining events",
				slog.String("error", err.Error()))
			clientGone = true
		}
	}
}
