// Package middleware provides net/http adapters over the authcore engine: a bearer-token
// guard and a permission gate.
package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	authcore "github.com/zvincent07/authcore"
)

type authResultContextKey struct{}

// Guard validates the request's bearer token and injects the resulting
// [authcore.AuthResult] into the request context. Requests without a valid token get
// 401. Validated requests also refresh their session's last-active time off the request
// path.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := withRequestMetadata(r)
			res, err := engine.ValidateToken(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			engine.MarkSessionActivity(ctx, res)
			ctx = context.WithValue(ctx, authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a route on a permission key. It must run inside Guard: the
// AuthResult from the context is resolved into a full principal and checked. Denials
// get 403; a missing AuthResult gets 401.
func RequirePermission(engine *authcore.Engine, key, label string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, err := engine.Authorize(r.Context(), res, key, label); err != nil {
				var denied *authcore.PermissionDeniedError
				if errors.As(err, &denied) {
					http.Error(w, denied.Error(), http.StatusForbidden)
					return
				}
				if errors.Is(err, authcore.ErrAccountInactive) {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthResultFromContext retrieves the AuthResult stored by Guard.
func AuthResultFromContext(ctx context.Context) (*authcore.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authcore.AuthResult)
	return res, ok
}

// RequestContext copies the request's client IP and User-Agent onto the context in the
// form the engine reads. Handlers calling flow methods directly (login, register) use it
// so lockout accounting and session records see the caller's address.
func RequestContext(r *http.Request) context.Context {
	return withRequestMetadata(r)
}

func withRequestMetadata(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := clientIP(r); ip != "" {
		ctx = authcore.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = authcore.WithUserAgent(ctx, ua)
	}
	return ctx
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
