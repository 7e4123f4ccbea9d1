package logctx

import (
	"context"
	"log/slog"
	"strings"
)

// LogSink is where mirrored records go, typically the engine's fire-and-forget
// diagnostic log RPC.
type LogSink interface {
	Log(ctx context.Context, level, message string)
}

// mirrorQueueSize bounds the records waiting on a slow sink. Mirrored records
// fire exactly when the engine is misbehaving, so overflow drops instead of
// backing up into the logging caller.
const mirrorQueueSize = 64

type mirrorEntry struct {
	level   string
	message string
}

// mirror decouples sink delivery from Handle: one worker drains a bounded
// queue, and every handler derived via WithAttrs or WithGroup shares it.
type mirror struct {
	sink  LogSink
	queue chan mirrorEntry
}

func newMirror(sink LogSink) *mirror {
	m := &mirror{sink: sink, queue: make(chan mirrorEntry, mirrorQueueSize)}

	go m.run()

	return m
}

func (m *mirror) run() {
	// The record's context may be request-scoped and gone by the time the
	// sink call runs.
	for entry := range m.queue {
		m.sink.Log(context.Background(), entry.level, entry.message)
	}
}

func (m *mirror) enqueue(level, message string) {
	select {
	case m.queue <- mirrorEntry{level: level, message: message}:
	default:
	}
}

// EngineHandler is an slog.Handler wrapper that mirrors warn and error
// records to the engine's log sink, so client-side failures show up in the
// engine's diagnostics too. Mirroring is advisory and never blocks the
// caller: the sink gets the bare message plus flattened attrs through a
// bounded queue, and the inner handler remains the source of truth.
type EngineHandler struct {
	inner  slog.Handler
	mirror *mirror
	attrs  []slog.Attr
}

func NewEngineHandler(h slog.Handler, sink LogSink) *EngineHandler {
	if h == nil {
		panic("logctx: NewEngineHandler called with nil handler")
	}

	eh := &EngineHandler{inner: h}
	if sink != nil {
		eh.mirror = newMirror(sink)
	}

	return eh
}

func (h *EngineHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *EngineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.mirror != nil && r.Level >= slog.LevelWarn {
		var sb strings.Builder

		sb.WriteString(r.Message)

		appendAttr := func(a slog.Attr) {
			sb.WriteString(" ")
			sb.WriteString(a.Key)
			sb.WriteString("=")
			sb.WriteString(a.Value.String())
		}

		for _, a := range h.attrs {
			appendAttr(a)
		}

		r.Attrs(func(a slog.Attr) bool {
			appendAttr(a)

			return true
		})

		h.mirror.enqueue(strings.ToLower(r.Level.String()), sb.String())
	}

	return h.inner.Handle(ctx, r)
}

func (h *EngineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &EngineHandler{inner: h.inner.WithAttrs(attrs), mirror: h.mirror, attrs: merged}
}

func (h *EngineHandler) WithGroup(name string) slog.Handler {
	return &EngineHandler{inner: h.inner.WithGroup(name), mirror: h.mirror, attrs: h.attrs}
}
