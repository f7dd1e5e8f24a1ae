package middleware

import (
	"context"
	"net"
	"net/http"
)

type contextKey string

const clientKey contextKey = "client"

// Client records the caller's address in the request context for rate
// limiting. Install it after chi's RealIP so proxied addresses are used.
func Client(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.RemoteAddr
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if host != "" {
			r = r.WithContext(setClient(r.Context(), host))
		}
		next.ServeHTTP(w, r)
	})
}

func setClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

func getClient(r *http.Request) (string, bool) {
	client, ok := r.Context().Value(clientKey).(string)
	return client, ok
}

// ExportedClientKey returns the context key for the client address (for testing).
func ExportedClientKey() contextKey {
	return clientKey
}
