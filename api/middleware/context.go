package middleware

import "context"

type contextKey string

const (
	ctxRequestID contextKey = "request_id"
	ctxCaller    contextKey = "caller"
	ctxActor     contextKey = "actor"
)

// HeaderActor names the person acting through a public route. It is recorded
// as created_by / changed_by and is not an authentication mechanism.
const HeaderActor = "X-Actor"

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRequestID)
}

// CallerFromContext returns the service kind authenticated by ServiceAuth.
func CallerFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxCaller)
}

func ActorFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxActor)
}

func WithCaller(ctx context.Context, caller string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCaller, caller)
}

func WithActor(ctx context.Context, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
