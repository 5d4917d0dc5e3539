package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/metrics"
	"github.com/Spacey6849/palliative-care-app/internal/redis"
)

type contextKey string

const (
	sessionContextKey      contextKey = "session"
	sessionTokenContextKey contextKey = "session_token"
)

// SessionResolver looks up sessions written by the auth tier.
type SessionResolver interface {
	Get(ctx context.Context, token string) (*redis.Session, error)
}

// SessionToken extracts the presented session token from the request: the
// session_token cookie the mobile client sends, or the X-Session-Token header
// for non-browser callers.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie("session_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.Header.Get("X-Session-Token")
}

// SessionMiddleware authenticates requests against the session store and puts
// the resolved session on the request context.
func SessionMiddleware(sessions SessionResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeProblem(w, http.StatusUnauthorized, "unauthenticated", "Missing session token", "")
				return
			}

			sess, err := sessions.Get(r.Context(), token)
			if err != nil {
				if errors.Is(err, redis.ErrSessionNotFound) {
					writeProblem(w, http.StatusUnauthorized, "unauthenticated", "Invalid or expired session", "")
					return
				}
				logger.Error("session lookup failed", zap.Error(err))
				writeProblem(w, http.StatusServiceUnavailable, "session_store_unavailable", "Session store unavailable", "")
				return
			}

			ctx := WithSession(r.Context(), *sess)
			ctx = context.WithValue(ctx, sessionTokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects sessions whose role is not in the allow list.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok || !allowed[sess.Role] {
				writeProblem(w, http.StatusForbidden, "forbidden", "Insufficient role", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithSession returns a context carrying the session.
func WithSession(ctx context.Context, sess redis.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionFromContext returns the session stored by SessionMiddleware.
func SessionFromContext(ctx context.Context) (redis.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(redis.Session)
	return sess, ok
}

// SessionTokenFromContext returns the raw token the session was resolved from.
func SessionTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(sessionTokenContextKey).(string)
	return token
}

// RateLimitMiddleware creates an HTTP middleware that enforces rate limits.
// The keyFunc extracts the rate limit key from the request (e.g., user ID, IP).
func RateLimitMiddleware(limiter *redis.RateLimiter, logger *zap.Logger, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limit check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			// Set rate limit headers
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				metrics.RecordRateLimitRejection(key)
				retryAfter := time.Until(result.ResetAt).Seconds()
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter)))
				writeProblem(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too Many Requests",
					"Rate limit exceeded. Please retry after the specified time.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserKeyFunc keys rate limits by the authenticated user. Requests without a
// session fall through to the next key func or stay unlimited.
func UserKeyFunc(r *http.Request) string {
	if sess, ok := SessionFromContext(r.Context()); ok {
		return "user:" + sess.UserID
	}
	return ""
}

// IPKeyFunc extracts the client IP for rate limiting.
func IPKeyFunc(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return "ip:" + ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + r.RemoteAddr
}

func writeProblem(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
