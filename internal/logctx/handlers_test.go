package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFromContext_FallsBackToDefault(t *testing.T) {
	logger := LoggerFromContext(context.Background())
	assert.NotNil(t, logger)
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	LoggerFromContext(ctx).Info("hello", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "v", entry["k"])
}

func TestTraceHandler_NoSpanContext(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))
	logger.InfoContext(context.Background(), "no span")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	_, hasTrace := entry["trace_id"]
	_, hasSpan := entry["span_id"]
	assert.False(t, hasTrace, "trace_id must be absent without a span")
	assert.False(t, hasSpan, "span_id must be absent without a span")
}

// captureSink records deliveries under a lock: the mirror hands records to it
// from its own goroutine.
type captureSink struct {
	mu       sync.Mutex
	levels   []string
	messages []string
}

func (c *captureSink) Log(_ context.Context, level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.levels = append(c.levels, level)
	c.messages = append(c.messages, message)
}

func (c *captureSink) snapshot() (levels, messages []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.levels...), append([]string(nil), c.messages...)
}

func TestEngineHandler_MirrorsWarnAndAbove(t *testing.T) {
	var buf bytes.Buffer

	sink := &captureSink{}
	logger := slog.New(NewEngineHandler(slog.NewJSONHandler(&buf, nil), sink))

	ctx := context.Background()
	logger.InfoContext(ctx, "routine")
	logger.WarnContext(ctx, "pause request failed", "download_id", "d1")
	logger.ErrorContext(ctx, "start rejected")

	require.Eventually(t, func() bool {
		levels, _ := sink.snapshot()

		return len(levels) == 2
	}, time.Second, 10*time.Millisecond)

	levels, messages := sink.snapshot()
	assert.Equal(t, []string{"warn", "error"}, levels)
	assert.Contains(t, messages[0], "pause request failed")
	assert.Contains(t, messages[0], "download_id=d1")

	// The inner handler still sees everything.
	assert.Contains(t, buf.String(), "routine")
}

func TestEngineHandler_CarriesWithAttrs(t *testing.T) {
	var buf bytes.Buffer

	sink := &captureSink{}
	logger := slog.New(NewEngineHandler(slog.NewJSONHandler(&buf, nil), sink)).With("component", "queue")

	logger.Warn("capacity change rejected")

	require.Eventually(t, func() bool {
		_, messages := sink.snapshot()

		return len(messages) == 1
	}, time.Second, 10*time.Millisecond)

	_, messages := sink.snapshot()
	assert.Contains(t, messages[0], "component=queue")
}

// stallSink models an engine whose log RPC hangs until released.
type stallSink struct {
	release chan struct{}
}

func (s *stallSink) Log(context.Context, string, string) {
	<-s.release
}

func TestEngineHandler_StalledSinkDoesNotBlockLogging(t *testing.T) {
	var buf bytes.Buffer

	release := make(chan struct{})
	defer close(release)

	logger := slog.New(NewEngineHandler(slog.NewJSONHandler(&buf, nil), &stallSink{release: release}))

	done := make(chan struct{})

	go func() {
		defer close(done)

		for i := 0; i < 10; i++ {
			logger.Error("engine unreachable", "attempt", i)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("logging blocked on the mirror sink")
	}

	// The local handler got every record regardless of the stalled mirror.
	assert.Equal(t, 10, bytes.Count(buf.Bytes(), []byte("engine unreachable")))
}

func TestEngineHandler_NilSinkIsPassthrough(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewEngineHandler(slog.NewJSONHandler(&buf, nil), nil))
	logger.Error("boom")

	assert.Contains(t, buf.String(), "boom")
}
