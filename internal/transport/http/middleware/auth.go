package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"commissionflow/internal/domain/auth"
	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/requestctx"
	"commissionflow/internal/transport/http/api"
)

// Auth attaches the caller to the context when a valid bearer token is
// present. Requests without one continue anonymously; RequireAuth and
// RequirePermission decide whether that is acceptable. A valid token whose
// role cannot be normalized is refused outright.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := auth.Authenticate(secret, token)
			if errors.Is(err, workflow.ErrUnknownRole) {
				api.Fail(w, http.StatusForbidden, "unknown_role", "account has no recognised role", GetRequestID(r.Context()))
				return
			}
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, user)
			ctx = requestctx.WithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

// WithUser is used by tests and internal callers that authenticate elsewhere.
func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}
