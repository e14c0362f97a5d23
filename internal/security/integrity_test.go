package security

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brain.dat")
	content := []byte("tier data payload")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	sum := sha256.Sum256(content)
	expected := hex.EncodeToString(sum[:])

	actual, err := FileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestFileChecksumMissingFile(t *testing.T) {
	_, err := FileChecksum(filepath.Join(t.TempDir(), "missing.dat"))
	assert.Error(t, err)
}

func TestVerifyBrainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brain.dat")
	require.NoError(t, os.WriteFile(path, []byte("expected content"), 0o644))

	sum := sha256.Sum256([]byte("expected content"))
	expected := hex.EncodeToString(sum[:])

	ok, err := VerifyBrainFile(path, expected)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyBrainFile(path, "0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyBrainFileMissingIsError(t *testing.T) {
	ok, err := VerifyBrainFile(filepath.Join(t.TempDir(), "missing"), "abc")
	assert.Error(t, err, "missing file must be distinguishable from a mismatch")
	assert.False(t, ok)
}
