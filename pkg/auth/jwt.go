// pkg/auth/jwt.go
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
	ErrInvalidHeader = errors.New("invalid authorization header format")
)

// Roles carried in access tokens.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

const tokenTypeAccess = "access"

// TokenManager issues and validates HMAC-signed access tokens
type TokenManager struct {
	accessSecret   []byte
	accessDuration time.Duration
	issuer         string
	now            func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager(accessSecret string, accessDuration time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:   []byte(accessSecret),
		accessDuration: accessDuration,
		issuer:         "hustlemarket",
		now:            time.Now,
	}
}

// CustomClaims represents the custom JWT claims
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token grants admin rights.
func (c *CustomClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// GenerateAccessToken signs a token for userID with role. It returns the
// token and its lifetime in seconds.
func (tm *TokenManager) GenerateAccessToken(userID, role string) (string, int64, error) {
	if strings.TrimSpace(userID) == "" {
		return "", 0, fmt.Errorf("generate access token: %w: empty user id", ErrInvalidClaims)
	}
	if role == "" {
		role = RoleMember
	}

	now := tm.now()
	claims := CustomClaims{
		UserID: userID,
		Role:   role,
		Type:   tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tm.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessDuration)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.accessSecret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}

	return tokenString, int64(tm.accessDuration.Seconds()), nil
}

// ValidateAccessToken validates an access token and returns the claims
func (tm *TokenManager) ValidateAccessToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.accessSecret, nil
	},
		jwt.WithIssuer(tm.issuer),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Type != tokenTypeAccess {
		return nil, fmt.Errorf("invalid token type: expected %s, got %s", tokenTypeAccess, claims.Type)
	}
	if claims.UserID == "" {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// ExtractTokenFromHeader extracts the token from the Authorization header
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return "", ErrInvalidHeader
	}
	token := strings.TrimSpace(authHeader[7:])
	if token == "" {
		return "", ErrInvalidHeader
	}
	return token, nil
}
