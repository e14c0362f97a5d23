package license

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Well-known license file layout: <project root>/.esmc/license.json.
const (
	MarkerDirName   = ".esmc"
	LicenseFileName = "license.json"
)

// DefaultMarker identifies a project root: a directory already carrying the
// .esmc substructure, or a repository root (.git).
func DefaultMarker(dir string) bool {
	for _, name := range []string{MarkerDirName, ".git"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// ResolveLicenseDir walks upward from start looking for a directory the
// marker predicate accepts, then guarantees the .esmc substructure exists
// inside it. When no marker is found the start directory itself is used.
// The function always returns a usable directory and never fails: directory
// creation problems are logged and the path returned anyway, so the caller
// surfaces the real error at write time.
//
// The "what is the starting directory" decision (working directory,
// executable directory) belongs to the boundary layer, not here.
func ResolveLicenseDir(start string, marker func(dir string) bool) string {
	if marker == nil {
		marker = DefaultMarker
	}

	root := start
	for dir := start; ; {
		if marker(dir) {
			root = dir
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Hit the filesystem root without a match; synthesize under start.
			root = start
			break
		}
		dir = parent
	}

	licenseDir := filepath.Join(root, MarkerDirName)
	if err := os.MkdirAll(licenseDir, 0o755); err != nil {
		slog.Warn("failed to create license directory",
			slog.String("dir", licenseDir),
			slog.String("error", err.Error()),
		)
	}
	return licenseDir
}

// DefaultLicensePath resolves the full license file path from a starting
// directory using the default marker.
func DefaultLicensePath(start string) string {
	return filepath.Join(ResolveLicenseDir(start, DefaultMarker), LicenseFileName)
}
