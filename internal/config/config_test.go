package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustLoadPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	err := os.WriteFile(path, []byte(`
env: "dev"
storage:
  driver: "memory"
ledger:
  signer_seed: "00"
sealing:
  master_secret: "secret"
access:
  token_secret: "token"
  session_ttl: 5m
`), 0o600)
	require.NoError(t, err)

	cfg := MustLoadPath(path)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Access.SessionTTL)
	assert.Equal(t, 2*time.Minute, cfg.Access.SignatureTimeout)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "fs", cfg.BlobStore.Driver)
	assert.Equal(t, 30*time.Second, cfg.Collaborators.Timeout)
	assert.Equal(t, 4, cfg.Publication.UploadConcurrency)
}

func TestMustLoadPath_MissingFile(t *testing.T) {
	assert.Panics(t, func() {
		MustLoadPath(filepath.Join(t.TempDir(), "absent.yaml"))
	})
}
