package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/caredirectory/reviews/pkg/httputil"
	"github.com/caredirectory/reviews/pkg/logger"
)

type contextKeyType string

const (
	userIDKey contextKeyType = "user_id"
	roleKey   contextKeyType = "role"
)

// Identity headers trusted when no JWT secret is configured, i.e. when an
// upstream gateway has already authenticated the caller.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Identify resolves the caller's identity and stores it in the request
// context. With a secret, identity comes only from an HS256 bearer token
// (claims user_id or sub, and role); a present but invalid token is rejected.
// Without a secret, the gateway identity headers are trusted. Requests with no
// identity pass through anonymously; handlers decide whether that is allowed.
func Identify(secret string, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID, role string

			if secret == "" {
				userID = strings.TrimSpace(r.Header.Get(HeaderUserID))
				role = strings.TrimSpace(r.Header.Get(HeaderUserRole))
			} else if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				scheme, token, ok := strings.Cut(authHeader, " ")
				if !ok || !strings.EqualFold(scheme, "bearer") {
					writeAuthError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "invalid authorization header format")
					return
				}

				var err error
				userID, role, err = parseToken(token, secret)
				if err != nil {
					l.WarnContext(r.Context(), "invalid bearer token",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
					writeAuthError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "invalid or expired token")
					return
				}
			}

			ctx := r.Context()
			if userID != "" {
				ctx = WithIdentity(ctx, userID, role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseToken(tokenString, secret string) (userID, role string, err error) {
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", "", err
	}

	userID, _ = claims["user_id"].(string)
	if userID == "" {
		userID, _ = claims.GetSubject()
	}
	role, _ = claims["role"].(string)
	return userID, role, nil
}

// RequireRole rejects callers without an identity (401) or whose role is not
// one of roles (403).
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFromContext(r.Context()) == "" {
				writeAuthError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "authentication required")
				return
			}
			if _, ok := roleSet[RoleFromContext(r.Context())]; !ok {
				writeAuthError(w, http.StatusForbidden, "NOT_PERMITTED", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a context carrying the given user ID and role.
func WithIdentity(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, roleKey, role)
	return logger.WithUserID(ctx, userID)
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// RoleFromContext extracts the user role from the request context.
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok {
		return role
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	httputil.WriteJSON(w, status, httputil.Response{
		Error: &httputil.ErrorResponse{Code: code, Message: message},
	})
}
