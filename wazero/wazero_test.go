package wazero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackPtrLen(t *testing.T) {
	t.Parallel()

	packed := PackPtrLen(1024, 17)
	ptr, length := UnpackPtrLen(packed)
	assert.Equal(t, uint32(1024), ptr)
	assert.Equal(t, uint32(17), length)
	assert.Equal(t, uint64(1024)<<32|17, packed)
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	tag := func(name string) Middleware {
		return func(next ByteHandler) ByteHandler {
			return func(ctx context.Context, p []byte) ([]byte, error) {
				order = append(order, name)
				return next(ctx, p)
			}
		}
	}
	h := Chain(func(context.Context, []byte) ([]byte, error) {
		order = append(order, "handler")
		return nil, nil
	}, tag("first"), tag("second"))

	_, err := h(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	h := Chain(func(context.Context, []byte) ([]byte, error) { panic("boom") }, PanicRecoveryMiddleware())
	resp, err := h(withFunctionName(context.Background(), FuncHTTPRequest), nil)
	require.NoError(t, err)

	var out ErrorResponse
	require.NoError(t, json.Unmarshal(resp, &out))
	assert.Equal(t, "PANIC", out.Error.Code)
	assert.Contains(t, out.Error.Message, "http_request")
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := Chain(func(context.Context, []byte) ([]byte, error) { return nil, errors.New("denied") }, LoggingMiddleware(logger))

	_, err := h(withFunctionName(context.Background(), FuncSaveSettings), nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "function=save_settings")
	assert.Contains(t, buf.String(), "error=denied")
}

func TestUserAgentMiddleware(t *testing.T) {
	t.Parallel()

	var seen []byte
	capture := func(_ context.Context, p []byte) ([]byte, error) { seen = p; return nil, nil }
	h := Chain(capture, UserAgentMiddleware("stranslate/2.0"))
	ctx := withFunctionName(context.Background(), FuncHTTPRequest)

	_, _ = h(ctx, []byte(`{"url":"https://example.com"}`))
	assert.JSONEq(t, `{"url":"https://example.com","headers":{"User-Agent":"stranslate/2.0"}}`, string(seen))

	_, _ = h(ctx, []byte(`{"url":"u","headers":{"user-agent":"mine"}}`))
	assert.JSONEq(t, `{"url":"u","headers":{"user-agent":"mine"}}`, string(seen))

	_, _ = h(withFunctionName(context.Background(), FuncLoadSettings), []byte(`{}`))
	assert.Equal(t, `{}`, string(seen))
}

func TestConvertSingleAttr(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		in   LogAttr
		want slog.Attr
	}{
		{LogAttr{"k", "string", "v"}, slog.String("k", "v")},
		{LogAttr{"n", "int64", "42"}, slog.Int64("n", 42)},
		{LogAttr{"b", "bool", "true"}, slog.Bool("b", true)},
		{LogAttr{"f", "float64", "1.5"}, slog.Float64("f", 1.5)},
		{LogAttr{"t", "time", ts.Format(time.RFC3339Nano)}, slog.Time("t", ts)},
		{LogAttr{"n", "int64", "nope"}, slog.Any("n", "nope")},
	}
	for _, tt := range tests {
		got := convertSingleAttr(tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %v want %v", tt.in.Key, got, tt.want)
	}

	errAttr := convertSingleAttr(LogAttr{"err", "error", "bad"})
	assert.Equal(t, "bad", errAttr.Value.Any().(error).Error())
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	assert.Equal(t, slog.LevelWarn, parseLogLevel(logger, "warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel(logger, "ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(logger, ""))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(logger, "loud"))
	assert.Contains(t, buf.String(), "unknown log level")
}

func TestHostContextFrom(t *testing.T) {
	t.Parallel()

	_, ok := HostContextFrom(context.Background())
	assert.False(t, ok)
	assert.Empty(t, FunctionName(context.Background()))
}
