package wazero

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ByteHandler handles one host function call: JSON payload in, JSON out.
type ByteHandler func(ctx context.Context, payload []byte) ([]byte, error)

// Middleware wraps a ByteHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next ByteHandler) ByteHandler

// Chain applies middleware to h so that mw[0] is outermost.
func Chain(h ByteHandler, mw ...Middleware) ByteHandler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// ErrorResponse is returned to the guest when a host function fails.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a host function failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse encodes an error payload.
func NewErrorResponse(code string, err error) []byte {
	data, _ := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: err.Error()}})
	return data
}

// PanicRecoveryMiddleware converts handler panics into an ErrorResponse
// instead of crashing the host.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp = NewErrorResponse("PANIC", fmt.Errorf("host function %s panicked: %v", FunctionName(ctx), r))
					err = nil
				}
			}()
			return next(ctx, payload)
		}
	}
}

// LoggingMiddleware logs host function invocations at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			name := FunctionName(ctx)
			start := time.Now()
			resp, err := next(ctx, payload)
			if err != nil {
				logger.WarnContext(ctx, "host function failed", "function", name, "error", err)
			} else {
				logger.DebugContext(ctx, "host function completed", "function", name, "duration", time.Since(start))
			}
			return resp, err
		}
	}
}

// UserAgentMiddleware sets a User-Agent header on http_request payloads that
// do not carry one.
func UserAgentMiddleware(userAgent string) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if FunctionName(ctx) != FuncHTTPRequest {
				return next(ctx, payload)
			}
			var req map[string]any
			if err := json.Unmarshal(payload, &req); err != nil {
				return next(ctx, payload)
			}
			headers, ok := req["headers"].(map[string]any)
			if !ok {
				headers = make(map[string]any)
				req["headers"] = headers
			}
			for k := range headers {
				if strings.EqualFold(k, "User-Agent") {
					return next(ctx, payload)
				}
			}
			headers["User-Agent"] = userAgent
			if patched, err := json.Marshal(req); err == nil {
				payload = patched
			}
			return next(ctx, payload)
		}
	}
}
