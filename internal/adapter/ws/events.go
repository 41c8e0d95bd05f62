package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventRunStatus = "run.status"
	EventRunStep   = "run.step"
)

// RunStatusEvent is broadcast when a run starts or reaches a terminal state.
type RunStatusEvent struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"` // "started", "done", or "failed"
	Answer string `json:"answer,omitempty"`
}

// RunStepEvent is broadcast after every trace step.
type RunStepEvent struct {
	RunID     string `json:"run_id"`
	Step      int    `json:"step"`
	Iteration int    `json:"iteration"`
	Kind      string `json:"kind"`
	Tool      string `json:"tool,omitempty"`
	FromCache bool   `json:"from_cache,omitempty"`
}

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
