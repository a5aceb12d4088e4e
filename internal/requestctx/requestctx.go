package requestctx

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	tokenKey     ctxKey = "bearer_token"
	idemKey      ctxKey = "idempotency_key"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

// WithToken stores the caller's bearer token for forwarding to the commission backend.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

func GetToken(ctx context.Context) string {
	if value, ok := ctx.Value(tokenKey).(string); ok {
		return value
	}
	return ""
}

func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idemKey, key)
}

func GetIdempotencyKey(ctx context.Context) string {
	if value, ok := ctx.Value(idemKey).(string); ok {
		return value
	}
	return ""
}

// Logger returns the request-scoped logger attached by the logging middleware,
// or the global zerolog context logger.
func Logger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
