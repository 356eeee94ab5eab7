package wazero

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tetratelabs/wazero/api"
)

// LogMessage is the JSON payload of the log_message host function.
type LogMessage struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Attrs   []LogAttr `json:"attrs,omitempty"`
}

// LogAttr is one typed attribute of a LogMessage.
type LogAttr struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// LogMessageFunc implements the `log_message` host function.
// It receives a packed uint64 (ptr+len) pointing to a JSON-encoded LogMessage
// and re-emits it through the plugin's logger. It returns nothing.
func LogMessageFunc(ctx context.Context, mod api.Module, stack []uint64) {
	logger := loggerFrom(ctx)

	payload, err := ReadPacked(mod, stack[0])
	if err != nil {
		logger.ErrorContext(ctx, "wazero: failed to read log message from guest memory", "error", err)
		return
	}
	var msg LogMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.ErrorContext(ctx, "wazero: failed to unmarshal log message", "error", err)
		return
	}

	logger.LogAttrs(ctx, parseLogLevel(logger, msg.Level), msg.Message, convertLogAttrs(msg.Attrs)...)
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if hc, ok := HostContextFrom(ctx); ok {
		if l := hc.Logger(); l != nil {
			return l
		}
	}
	return slog.Default()
}

// parseLogLevel converts a string level to slog.Level.
func parseLogLevel(logger *slog.Logger, levelStr string) slog.Level {
	level := slog.LevelInfo
	if levelStr == "" {
		return level
	}
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		logger.Warn("wazero: unknown log level from plugin", "level", levelStr)
		return slog.LevelInfo
	}
	return level
}

// convertLogAttrs converts wire attributes to slog.Attr slice.
func convertLogAttrs(wireAttrs []LogAttr) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(wireAttrs))
	for _, attr := range wireAttrs {
		attrs = append(attrs, convertSingleAttr(attr))
	}
	return attrs
}

// convertSingleAttr converts a single wire attribute to slog.Attr.
func convertSingleAttr(attr LogAttr) slog.Attr {
	switch attr.Type {
	case "string":
		return slog.String(attr.Key, attr.Value)
	case "int64":
		if v, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
			return slog.Int64(attr.Key, v)
		}
	case "bool":
		if v, err := strconv.ParseBool(attr.Value); err == nil {
			return slog.Bool(attr.Key, v)
		}
	case "float64":
		if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
			return slog.Float64(attr.Key, v)
		}
	case "time":
		if v, err := time.Parse(time.RFC3339Nano, attr.Value); err == nil {
			return slog.Time(attr.Key, v)
		}
	case "error":
		return slog.Any(attr.Key, fmt.Errorf("%s", attr.Value))
	}
	// Unknown types and parse failures keep the raw string.
	return slog.Any(attr.Key, attr.Value)
}
