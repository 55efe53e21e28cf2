package authflow

import "context"

type clientIPContextKey struct{}
type requestHostContextKey struct{}
type intendedPathContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx for audit logging.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithRequestHost attaches the host the request arrived on. The hosted
// canonical-login guard uses it; without it the guard redirects to the
// canonical host.
func WithRequestHost(ctx context.Context, host string) context.Context {
	return context.WithValue(ctx, requestHostContextKey{}, host)
}

// WithIntendedPath attaches the destination the caller originally asked
// for. Completed logins redirect there instead of the default landing.
func WithIntendedPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, intendedPathContextKey{}, path)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func requestHostFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	host, _ := ctx.Value(requestHostContextKey{}).(string)
	return host
}

func intendedPathFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	path, _ := ctx.Value(intendedPathContextKey{}).(string)
	return path
}
