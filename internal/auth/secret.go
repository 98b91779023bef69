package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ibeckermayer/trendpersona/internal/config"
)

const secretBytes = 32

// SecretStore persists the token signing secret when none is configured,
// so tokens survive restarts.
type SecretStore struct {
	path string
}

// storedSecret represents the persisted secret
type storedSecret struct {
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSecretStore creates a secret store at the given path
func NewSecretStore(path string) *SecretStore {
	return &SecretStore{path: path}
}

// DefaultSecretStorePath returns the default path for the signing secret
func DefaultSecretStorePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "jwt_secret.json"), nil
}

// LoadOrCreate returns the stored secret, generating and saving one if the
// file does not exist yet.
func (s *SecretStore) LoadOrCreate() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err == nil {
		var stored storedSecret
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("failed to parse secret file: %w", err)
		}
		secret, err := hex.DecodeString(stored.Secret)
		if err != nil || len(secret) < secretBytes {
			return nil, fmt.Errorf("secret file %s is corrupt", s.path)
		}
		return secret, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read secret file: %w", err)
	}

	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return nil, err
	}
	data, err = json.MarshalIndent(storedSecret{
		Secret:    hex.EncodeToString(secret),
		CreatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to save secret: %w", err)
	}
	return secret, nil
}

// Clear removes the stored secret, invalidating every issued token on the
// next start.
func (s *SecretStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ResolveSecret returns the configured secret or the persisted one
func ResolveSecret(cfg config.DashboardConfig) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	path, err := DefaultSecretStorePath()
	if err != nil {
		return nil, err
	}
	return NewSecretStore(path).LoadOrCreate()
}
