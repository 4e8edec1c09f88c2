package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const ownerIDKey contextKey = "ownerID"

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// CronAuthMiddleware guards the batch trigger endpoints with a shared
// secret presented as a bearer token. When a bcrypt hash is configured
// it takes precedence; otherwise the plain secret is compared in
// constant time. With neither configured the triggers are disabled.
func CronAuthMiddleware(secret, secretHash string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" && secretHash == "" {
				logger.Warn("cron trigger rejected: no secret configured", zap.String("path", r.URL.Path))
				writeError(w, http.StatusServiceUnavailable, "trigger endpoints are not configured")
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				logger.Warn("cron trigger rejected: missing bearer token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			if secretHash != "" {
				if err := bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(token)); err != nil {
					logger.Warn("cron trigger rejected: invalid secret",
						zap.String("path", r.URL.Path),
						zap.String("remote_addr", r.RemoteAddr),
					)
					writeError(w, http.StatusUnauthorized, "invalid trigger secret")
					return
				}
			} else if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				logger.Warn("cron trigger rejected: invalid secret",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid trigger secret")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// JWTAuthMiddleware validates session tokens issued by the external
// auth service (HS256) and injects the owner id into the context.
func JWTAuthMiddleware(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				logger.Warn("auth: missing or malformed token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				logger.Warn("auth: token missing subject", zap.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "token missing subject")
				return
			}

			ctx := context.WithValue(r.Context(), ownerIDKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerIDFromContext extracts the authenticated owner id from context.
func OwnerIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ownerIDKey).(string)
	return v
}
