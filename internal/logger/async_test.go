package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// gateHandler blocks every Handle call until release is closed, and records
// the messages it eventually writes.
type gateHandler struct {
	release chan struct{}
	mu      sync.Mutex
	msgs    []string
}

func (g *gateHandler) Enabled(context.Context, slog.Level) bool { return true }

func (g *gateHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface
	<-g.release
	g.mu.Lock()
	g.msgs = append(g.msgs, rec.Message)
	g.mu.Unlock()
	return nil
}

func (g *gateHandler) WithAttrs([]slog.Attr) slog.Handler { return g }
func (g *gateHandler) WithGroup(string) slog.Handler      { return g }

func (g *gateHandler) messages() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.msgs...)
}

func TestAsyncHandlerPreservesDerivedAttrs(t *testing.T) {
	var buf bytes.Buffer
	async := NewAsyncHandler(slog.NewJSONHandler(&buf, nil), 16, 1)

	log := slog.New(async).With("component", "executor")
	log.Info("tool call done", "tool", "echo")
	async.Close()

	out := buf.String()
	if !strings.Contains(out, `"component":"executor"`) {
		t.Errorf("derived attr lost across the queue: %s", out)
	}
	if !strings.Contains(out, `"tool":"echo"`) {
		t.Errorf("record attr lost: %s", out)
	}
}

func TestAsyncHandlerDropsWhenFull(t *testing.T) {
	gate := &gateHandler{release: make(chan struct{})}
	async := NewAsyncHandler(gate, 1, 1)

	// One record can be in the blocked worker and one in the queue; the
	// rest must be dropped.
	for i := 0; i < 6; i++ {
		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "spam", 0)
		_ = async.Handle(context.Background(), rec)
	}
	if got := async.DroppedCount(); got < 4 {
		t.Errorf("expected at least 4 drops, got %d", got)
	}

	close(gate.release)
	async.Close()

	found := false
	for _, msg := range gate.messages() {
		if msg == "log records dropped" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected drop summary on close, got %v", gate.messages())
	}
}

func TestAsyncHandlerCloseFlushes(t *testing.T) {
	var buf bytes.Buffer
	async := NewAsyncHandler(slog.NewJSONHandler(&buf, nil), 64, 2)

	log := slog.New(async)
	for i := 0; i < 10; i++ {
		log.Info("entry", "n", i)
	}
	async.Close()

	if got := strings.Count(buf.String(), `"msg":"entry"`); got != 10 {
		t.Errorf("expected 10 flushed records, got %d", got)
	}
}
