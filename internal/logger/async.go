package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes buffered log records on shutdown.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler decouples log emission from log I/O: Handle enqueues onto a
// bounded queue and worker goroutines write through the wrapped handler.
// A full queue drops the record instead of blocking the request path.
type AsyncHandler struct {
	inner slog.Handler
	q     *logQueue
}

// logQueue is shared by an AsyncHandler and every handler derived from it
// via WithAttrs/WithGroup. Each queued record carries the handler that
// enqueued it, so derived attributes and groups survive the queue hop.
type logQueue struct {
	ch      chan queuedRecord
	wg      sync.WaitGroup
	dropped atomic.Int64
}

type queuedRecord struct {
	h   slog.Handler
	rec slog.Record
}

// NewAsyncHandler wraps inner with a queue of the given capacity, drained by
// the given number of workers. Values below 1 are raised to 1.
func NewAsyncHandler(inner slog.Handler, capacity, workers int) *AsyncHandler {
	capacity = max(capacity, 1)
	workers = max(workers, 1)

	q := &logQueue{ch: make(chan queuedRecord, capacity)}
	for range workers {
		q.wg.Add(1)
		go q.drain()
	}
	return &AsyncHandler{inner: inner, q: q}
}

func (q *logQueue) drain() {
	defer q.wg.Done()
	for item := range q.ch {
		_ = item.h.Handle(context.Background(), item.rec)
	}
}

// Enabled delegates to the wrapped handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues a clone of rec. slog may reuse a record's backing storage
// after Handle returns, so the queued copy must own its state.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.q.ch <- queuedRecord{h: h.inner, rec: rec.Clone()}:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

// WithAttrs derives a handler that writes through the same queue.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), q: h.q}
}

// WithGroup derives a handler that writes through the same queue.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), q: h.q}
}

// DroppedCount reports how many records were discarded on a full queue.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.q.dropped.Load()
}

// Close drains the queue and stops the workers, then reports any drops
// synchronously through the wrapped handler. Handle must not be called
// after Close.
func (h *AsyncHandler) Close() {
	close(h.q.ch)
	h.q.wg.Wait()

	if n := h.q.dropped.Load(); n > 0 {
		rec := slog.NewRecord(time.Now(), slog.LevelWarn, "log records dropped", 0)
		rec.AddAttrs(slog.Int64("dropped", n))
		_ = h.inner.Handle(context.Background(), rec)
	}
}
