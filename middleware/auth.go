package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/models"
	"bastaku-campaign-api/services/auth"
	"bastaku-campaign-api/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// TokenValidator resolves a bearer token to its user. *auth.JWTService
// implements it.
type TokenValidator interface {
	ValidateToken(token string) (*models.AuthUser, error)
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware rejects requests without a valid access token.
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Missing authorization header")
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}

			user, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Get().Debugw("token validation failed", "remote_addr", r.RemoteAddr, "error", err)

				message := "Authentication failed"
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					message = "Token expired"
				case errors.Is(err, auth.ErrInvalidToken):
					message = "Invalid token"
				}
				utils.SendErrorResponse(w, http.StatusUnauthorized, message)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireRetail keeps wholesale accounts out of consumer-only endpoints.
func RequireRetail() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r.Context())
			if user == nil {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if user.IsWholesaler {
				utils.SendErrorResponse(w, http.StatusForbidden, "Wholesale accounts cannot take part in campaigns")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithUser(ctx context.Context, user *models.AuthUser) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

func GetUserFromContext(ctx context.Context) *models.AuthUser {
	user, ok := ctx.Value(UserContextKey).(*models.AuthUser)
	if !ok {
		return nil
	}
	return user
}
