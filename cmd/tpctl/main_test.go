package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ibeckermayer/trendpersona/internal/auth"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPasswordFromStdin(t *testing.T) {
	out, err := execute(t, "s3cret\n", "hash-password")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := execute(t, "\n", "hash-password")
	assert.Error(t, err)
}

func TestLastArtifactUnknownStep(t *testing.T) {
	_, err := execute(t, "", "last-artifact", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

func TestOpenRequiresTarget(t *testing.T) {
	_, err := execute(t, "", "open")
	assert.Error(t, err)
}

func TestRotateSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwt_secret.json")
	first, err := auth.NewSecretStore(path).LoadOrCreate()
	require.NoError(t, err)

	out, err := execute(t, "", "rotate-secret", "--secret-file", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	second, err := auth.NewSecretStore(path).LoadOrCreate()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = execute(t, "", "rotate-secret", "--secret-file", path+".missing")
	assert.NoError(t, err)
}
