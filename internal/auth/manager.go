// Package auth authenticates dashboard operators and issues bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ibeckermayer/trendpersona/internal/config"
)

const (
	issuer   = "trendpersona"
	audience = "trendpersona-dashboard"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrLoginDisabled      = errors.New("no admin password configured")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims are the token claims; Subject is the operator name
type Claims struct {
	jwt.RegisteredClaims
}

// Manager checks operator credentials against a bcrypt hash
type Manager struct {
	users  []string
	hash   []byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a manager for the dashboard config and signing secret
func NewManager(cfg config.DashboardConfig, secret []byte) (*Manager, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token signing secret is required")
	}
	if cfg.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
			return nil, fmt.Errorf("invalid admin password hash: %w", err)
		}
	}
	ttl := time.Duration(cfg.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &Manager{
		users:  slices.Clone(cfg.AdminUsers),
		hash:   []byte(cfg.PasswordHash),
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// LoginEnabled reports whether a password hash is configured
func (m *Manager) LoginEnabled() bool {
	return len(m.hash) > 0
}

// Authenticate checks user and password
func (m *Manager) Authenticate(user, password string) error {
	if !m.LoginEnabled() {
		return ErrLoginDisabled
	}
	known := slices.Contains(m.users, user)
	// compare even for unknown users so both paths take the same time
	err := bcrypt.CompareHashAndPassword(m.hash, []byte(password))
	if !known || err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueToken signs an HS256 token for user
func (m *Manager) IssueToken(user string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates a token and returns its claims. The subject must
// still be a configured admin.
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !slices.Contains(m.users, claims.Subject) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword returns a bcrypt hash suitable for dashboard.password_hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
