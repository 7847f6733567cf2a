package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "rconhub"

var (
	ErrTokensDisabled = errors.New("session tokens are not configured")
	ErrInvalidToken   = errors.New("invalid session token")
)

// Claims carried by an RCON session token.
type Claims struct {
	Level  int    `json:"lvl"`
	Method string `json:"mth,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 session tokens handed out after a
// successful auth request, so clients can re-authenticate later without
// resending the secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager returns a manager signing with secret. An empty secret
// disables tokens.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) Enabled() bool {
	return len(m.secret) > 0
}

// Issue signs a token for subject.
func (m *TokenManager) Issue(subject string, level int, method string) (string, error) {
	if !m.Enabled() {
		return "", ErrTokensDisabled
	}
	now := m.now()
	claims := Claims{
		Level:  level,
		Method: method,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns its claims.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	if !m.Enabled() {
		return nil, ErrTokensDisabled
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
