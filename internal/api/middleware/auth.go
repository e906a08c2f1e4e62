package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/zyra-ai/zyra/internal/api/dto"
	"github.com/zyra-ai/zyra/internal/pkg/crypto"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

type TokenValidator interface {
	ValidateToken(token string) (*crypto.Claims, error)
}

// AuthMiddleware accepts access tokens issued to UI users and the short
// lived service tokens the scheduler and worker attach to trigger calls.
type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			dto.Unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			dto.Unauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := m.validator.ValidateToken(parts[1])
		if err != nil {
			if errors.Is(err, crypto.ErrExpiredToken) {
				dto.Unauthorized(w, "token expired")
				return
			}
			dto.Unauthorized(w, "invalid token")
			return
		}

		if claims.Type != crypto.TokenTypeAccess && claims.Type != crypto.TokenTypeService {
			dto.Unauthorized(w, "invalid token type")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
