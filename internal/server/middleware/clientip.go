package middleware

import (
	"context"
	"net/http"

	"github.com/iplens/iplens/internal/core/clientip"
)

type clientIDContextKey string

const ClientIDContextKey clientIDContextKey = "client_id"

// ClientID resolves the caller's client identity once per request and stores
// it in the context. With trustHeaders false, forwarding headers are ignored.
func ClientID(trustHeaders bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := clientip.FromRequest(r, trustHeaders)
			ctx := context.WithValue(r.Context(), ClientIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientID returns the identity stored by ClientID, or "" when the
// middleware did not run.
func GetClientID(ctx context.Context) string {
	if id, ok := ctx.Value(ClientIDContextKey).(string); ok {
		return id
	}
	return ""
}
