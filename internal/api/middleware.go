package api

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/Keyhaven-io/keyhaven/internal/auth"
	"github.com/Keyhaven-io/keyhaven/internal/ratelimit"
)

type contextKey string

const UserContextKey contextKey = "user"

// TokenAuthMiddleware validates the bearer access token and stores its
// claims on the request context.
func TokenAuthMiddleware(tokenManager *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := tokenManager.ValidateToken(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext retrieves the access claims from the context
func GetUserFromContext(ctx context.Context) (*auth.AccessClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*auth.AccessClaims)
	return claims, ok
}

// RateLimitMiddleware gates an endpoint class behind the limiter, keyed by
// the client address. Rejections surface as 429 without revealing whether
// the gated action would have succeeded.
func RateLimitMiddleware(limiter *ratelimit.Limiter, class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := class + ":" + clientIP(r)
			if err := limiter.TryAcquire(r.Context(), key); err != nil {
				if err == ratelimit.ErrRateLimited {
					writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
					return
				}
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the request's source address. middleware.RealIP has
// already folded X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
