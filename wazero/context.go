package wazero

import (
	"context"

	"github.com/stranslate-dev/stranslate-plugin-host/capability"
)

type hostContextKey struct{}

// WithHostContext attaches the plugin's host context to ctx. Host functions
// invoked during a guest call made with ctx resolve it with HostContextFrom.
func WithHostContext(ctx context.Context, hc capability.Context) context.Context {
	return context.WithValue(ctx, hostContextKey{}, hc)
}

// HostContextFrom returns the host context attached to ctx.
func HostContextFrom(ctx context.Context) (capability.Context, bool) {
	hc, ok := ctx.Value(hostContextKey{}).(capability.Context)
	return hc, ok && hc != nil
}

type functionNameKey struct{}

func withFunctionName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, functionNameKey{}, name)
}

// FunctionName returns the host function being invoked, if any.
func FunctionName(ctx context.Context) string {
	name, _ := ctx.Value(functionNameKey{}).(string)
	return name
}
