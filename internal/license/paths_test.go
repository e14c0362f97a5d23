package license

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLicenseDirMarkerWithSubstructure(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, MarkerDirName), 0o755))
	start := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(start, 0o755))

	got := ResolveLicenseDir(start, DefaultMarker)
	assert.Equal(t, filepath.Join(root, MarkerDirName), got)
}

func TestResolveLicenseDirMarkerWithoutSubstructure(t *testing.T) {
	// Project root identified by .git only; the .esmc substructure must be
	// created on demand.
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	start := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(start, 0o755))

	got := ResolveLicenseDir(start, DefaultMarker)
	assert.Equal(t, filepath.Join(root, MarkerDirName), got)

	info, err := os.Stat(got)
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "missing substructure must be created")
}

func TestResolveLicenseDirNoMarkerFallsBackToStart(t *testing.T) {
	start := t.TempDir()

	never := func(string) bool { return false }
	got := ResolveLicenseDir(start, never)

	assert.Equal(t, filepath.Join(start, MarkerDirName), got)
	info, err := os.Stat(got)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveLicenseDirNilMarker(t *testing.T) {
	start := t.TempDir()
	got := ResolveLicenseDir(start, nil)
	assert.NotEmpty(t, got)
}

func TestDefaultLicensePath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, MarkerDirName), 0o755))

	got := DefaultLicensePath(root)
	assert.Equal(t, filepath.Join(root, MarkerDirName, LicenseFileName), got)
}
