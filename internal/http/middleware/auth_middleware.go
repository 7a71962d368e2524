package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/draftwise/coverletter-api/internal/http/response"
	"github.com/draftwise/coverletter-api/pkg/auth"
	"github.com/draftwise/coverletter-api/pkg/logger"
)

type ctxKey string

const (
	CtxClaims   ctxKey = "claims"
	CtxClientIP ctxKey = "client_ip"
)

// RequireJWT rejects requests without a valid bearer token.
func RequireJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				response.WriteError(w, http.StatusUnauthorized, "Missing or invalid authorization header", response.CodeUnauthorized)
				return
			}

			raw := strings.TrimPrefix(authz, "Bearer ")
			claims, err := auth.Parse(raw, secret)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "Invalid token", response.CodeInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
			ctx = context.WithValue(ctx, CtxClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalJWT attaches claims when a valid bearer token is present but lets
// anonymous requests through untouched. An invalid token is still rejected so
// callers learn their session expired instead of silently downgrading to the
// guest allowance.
func OptionalJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			raw := strings.TrimPrefix(authz, "Bearer ")
			claims, err := auth.Parse(raw, secret)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "Invalid token", response.CodeInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
			ctx = context.WithValue(ctx, CtxClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireVerifiedUser guards purchase endpoints: the caller must be a
// registered account with a verified email. Guests never get here.
func RequireVerifiedUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := Claims(r)
		if claims == nil {
			response.Unauthorized(w, "Authentication required")
			return
		}
		if claims.Role == "guest" {
			response.Forbidden(w, "Guest accounts cannot purchase credits")
			return
		}
		if !claims.Verified {
			response.WriteError(w, http.StatusForbidden, "Email verification required", response.CodeEmailNotVerified)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP resolves the caller's IP (honoring proxy headers) and stashes it in
// the request context; it identifies guests.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ctx := context.WithValue(r.Context(), CtxClientIP, ip)
		ctx = context.WithValue(ctx, logger.GuestIPKey, ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func Claims(r *http.Request) *auth.Claims {
	if v := r.Context().Value(CtxClaims); v != nil {
		if c, ok := v.(*auth.Claims); ok {
			return c
		}
	}
	return nil
}

func IP(r *http.Request) string {
	if v := r.Context().Value(CtxClientIP); v != nil {
		if ip, ok := v.(string); ok {
			return ip
		}
	}
	return clientIP(r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
