package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/medhistory/internal/backend"
)

// CONTEXT KEYS:
// context.WithValue compares keys with ==, including their type. A private
// type means no other package can build a key equal to identityKey, so no
// other package can overwrite or read the identity by accident.
type contextKey string

const identityKey contextKey = "identity"

// TokenCookie is the cookie the web client stores its access token in.
const TokenCookie = "token"

// RequireAuth rejects requests without a valid access token. The token is
// read from "Authorization: Bearer" or, failing that, the token cookie.
// On success the identity and the raw token are put on the context.
//
// MIDDLEWARE FACTORY:
// RequireAuth is not the middleware itself; it returns one with tokens
// captured in the closure. chi wants func(http.Handler) http.Handler, and
// this is how a middleware gets its dependencies without globals.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := extractToken(r)
			if err != nil {
				unauthorized(w)
				return
			}
			id, err := tokens.Validate(raw)
			if err != nil {
				unauthorized(w)
				return
			}

			// r.WithContext returns a shallow copy; the original request is
			// never mutated
			ctx := WithIdentity(r.Context(), id)
			ctx = backend.WithAccessToken(ctx, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity set by RequireAuth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// UserIDFromContext is a shortcut for IdentityFromContext(ctx).UserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}

var errNoToken = errors.New("auth: no access token")

// extractToken reads the token from the Authorization header, or from the
// cookie when there is no header.
//
// TWO TRANSPORTS:
// API clients send "Authorization: Bearer <jwt>". The browser client keeps
// the token in an HttpOnly cookie, which scripts cannot read and the browser
// attaches on its own. A malformed header is rejected outright rather than
// falling back to the cookie.
func extractToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", errNoToken
		}
		return strings.TrimSpace(token), nil
	}
	cookie, err := r.Cookie(TokenCookie)
	if err != nil || cookie.Value == "" {
		return "", errNoToken
	}
	return cookie.Value, nil
}
