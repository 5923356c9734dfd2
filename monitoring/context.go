package monitoring

import "context"

type requestIDKey struct{}

// WithRequestID attaches a request id that recorders copy onto events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
