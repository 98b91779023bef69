package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ibeckermayer/trendpersona/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Default().Dashboard
	cfg.AdminUsers = []string{"admin", "ops"}
	cfg.PasswordHash = string(hash)
	cfg.TokenTTLMinutes = 60

	m, err := NewManager(cfg, []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return m
}

func TestAuthenticate(t *testing.T) {
	m := testManager(t)
	assert.NoError(t, m.Authenticate("admin", "s3cret"))
	assert.NoError(t, m.Authenticate("ops", "s3cret"))
	assert.ErrorIs(t, m.Authenticate("admin", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, m.Authenticate("mallory", "s3cret"), ErrInvalidCredentials)
}

func TestAuthenticateDisabledWithoutHash(t *testing.T) {
	m, err := NewManager(config.Default().Dashboard, []byte("secret"))
	require.NoError(t, err)
	assert.False(t, m.LoginEnabled())
	assert.ErrorIs(t, m.Authenticate("admin", ""), ErrLoginDisabled)
}

func TestNewManagerRejectsBadHash(t *testing.T) {
	cfg := config.Default().Dashboard
	cfg.PasswordHash = "plaintext"
	_, err := NewManager(cfg, []byte("secret"))
	assert.Error(t, err)

	_, err = NewManager(config.Default().Dashboard, nil)
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	m := testManager(t)
	token, expires, err := m.IssueToken("admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestParseTokenRejects(t *testing.T) {
	m := testManager(t)

	_, err := m.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// expired
	token, _, err := m.IssueToken("admin")
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	m.now = time.Now

	// removed user
	token, _, err = m.IssueToken("ghost")
	require.NoError(t, err)
	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// other secret
	other := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "admin",
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	signed, err := other.SignedString([]byte("not-the-secret"))
	require.NoError(t, err)
	_, err = m.ParseToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestSecretStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "jwt_secret.json")
	s := NewSecretStore(path)

	first, err := s.LoadOrCreate()
	require.NoError(t, err)
	assert.Len(t, first, secretBytes)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := s.LoadOrCreate()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	third, err := s.LoadOrCreate()
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestSecretStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwt_secret.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"secret":"zz"}`), 0600))
	_, err := NewSecretStore(path).LoadOrCreate()
	assert.Error(t, err)
}

func TestResolveSecretPrefersConfig(t *testing.T) {
	cfg := config.Default().Dashboard
	cfg.JWTSecret = "configured"
	secret, err := ResolveSecret(cfg)
	require.NoError(t, err)
	assert.Equal(t, []byte("configured"), secret)
}
