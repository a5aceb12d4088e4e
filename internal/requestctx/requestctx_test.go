package requestctx

import (
	"context"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithToken(ctx, "tok")
	ctx = WithIdempotencyKey(ctx, "idem")

	if got := GetRequestID(ctx); got != "req-1" {
		t.Fatalf("request id = %q", got)
	}
	if got := GetToken(ctx); got != "tok" {
		t.Fatalf("token = %q", got)
	}
	if got := GetIdempotencyKey(ctx); got != "idem" {
		t.Fatalf("idempotency key = %q", got)
	}
}

func TestMissingValuesAreEmpty(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetToken(ctx) != "" || GetIdempotencyKey(ctx) != "" {
		t.Fatal("expected empty values")
	}
	if Logger(ctx) == nil {
		t.Fatal("expected a logger")
	}
}
