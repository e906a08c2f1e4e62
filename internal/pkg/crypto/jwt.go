package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Token types
const (
	TokenTypeAccess  = "access"
	TokenTypeService = "service"
)

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	ServiceExpiry time.Duration
	Issuer        string
}

type JWTManager struct {
	config JWTConfig
}

type Claims struct {
	Subject string `json:"sub_name"`
	Type    string `json:"type"`
	jwt.RegisteredClaims
}

func NewJWTManager(config JWTConfig) *JWTManager {
	return &JWTManager{config: config}
}

// GenerateAccessToken issues a token for an API client such as the UI.
func (m *JWTManager) GenerateAccessToken(subject string) (string, time.Time, error) {
	return m.generateToken(subject, TokenTypeAccess, m.config.AccessExpiry)
}

// GenerateServiceToken issues a short-lived token for in-cluster callers
// (scheduler triggers, queue worker).
func (m *JWTManager) GenerateServiceToken(service string) (string, error) {
	token, _, err := m.generateToken(service, TokenTypeService, m.config.ServiceExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to generate service token: %w", err)
	}
	return token, nil
}

func (m *JWTManager) generateToken(subject, tokenType string, expiry time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(expiry)

	claims := Claims{
		Subject: subject,
		Type:    tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
			Subject:   subject,
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithIssuer(m.config.Issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
