package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/solstyle/auth-api/internal/auth"
	"github.com/solstyle/auth-api/internal/model"
	"github.com/solstyle/auth-api/internal/repository"
)

type contextKey struct{ name string }

var (
	userContextKey      = contextKey{"user"}
	requestIDContextKey = contextKey{"request_id"}
)

const requestIDHeader = "X-Request-ID"

// UserFromContext returns the authenticated user attached by Protect.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok
}

// Protect guards routes that require an authenticated, verified and unblocked
// user. The session token is read from the Authorization header or, failing
// that, from the auth cookie.
func Protect(
	jwtAuth auth.JWTAuthenticator,
	secret string,
	userRepo repository.UserRepository,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractToken(r)
			if !ok {
				writeMiddlewareError(w, http.StatusUnauthorized, "not authorized, no token provided")
				return
			}

			claims := &auth.UserClaims{}
			if _, err := jwtAuth.ValidateTokenWithClaims(tokenStr, secret, claims); err != nil {
				writeMiddlewareError(w, http.StatusUnauthorized, "not authorized, token failed or expired")
				return
			}

			user, err := userRepo.GetUser(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, mongo.ErrNoDocuments) {
					writeMiddlewareError(w, http.StatusUnauthorized, "user not found")
					return
				}

				writeMiddlewareError(w, http.StatusInternalServerError, "something went wrong")
				return
			}

			if user.Blocked {
				writeMiddlewareError(w, http.StatusForbidden, "your account has been blocked by an administrator")
				return
			}
			if !user.Verified {
				writeMiddlewareError(w, http.StatusUnauthorized, "account not verified, please complete email verification")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1], true
		}

		return "", false
	}

	cookie, err := r.Cookie(authCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	return cookie.Value, true
}

func writeMiddlewareError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"message":"` + message + `"}`))
}

// RequestID assigns a correlation ID to every request, reusing the inbound
// X-Request-ID header when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the correlation ID attached by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

// RequestLogger logs one line per request with method, path, status and
// duration.
func RequestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", recorder.status).
				Dur("duration", time.Since(start)).
				Str("request_id", RequestIDFromContext(r.Context())).
				Msg("request completed")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
