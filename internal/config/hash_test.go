package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndVerifyChecksums(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  mode: relay\n"), 0644))

	manifest, err := WriteChecksums(path)
	require.NoError(t, err)
	assert.Equal(t, 1, manifest.Version)
	assert.Len(t, manifest.Hashes, 1)

	// Untouched file verifies clean.
	require.NoError(t, VerifyConfigFile(path))

	// Tampered file is rejected.
	require.NoError(t, os.WriteFile(path, []byte("service:\n  mode: extract\n"), 0644))
	err = VerifyConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestVerifyConfigFile_NoManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service: {}\n"), 0644))

	// Integrity checking is opt-in; no manifest means no error.
	assert.NoError(t, VerifyConfigFile(path))
}

func TestComputeBlake3Hash_Deterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0644))

	h1, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	h2, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}
