// Package datadir locates and prepares the platform-specific directory the
// daemon keeps its state in: the debug log, and the external alert script.
package datadir

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Resolve returns the platform-specific data directory, creating it (and
// its parents) if it does not yet exist.
//
//	windows: %APPDATA%\opensentinel\
//	darwin:  ~/Library/Application Support/opensentinel/
//	other:   ~/.opensentinel/data/
func Resolve() (string, error) {
	dir, err := platformDir()
	if err != nil {
		return "", fmt.Errorf("datadir: %w", err)
	}
	if err := ensureDir(dir); err != nil {
		return "", fmt.Errorf("datadir: %w", err)
	}
	return dir, nil
}

func platformDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("%%APPDATA%% is not set")
		}
		return filepath.Join(appData, "opensentinel"), nil

	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "opensentinel"), nil

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".opensentinel", "data"), nil
	}
}

// ensureDir makes sure path exists as a directory. If a plain file sits at
// path it is removed and replaced, mirroring how a stale, non-directory
// leftover is handled.
func ensureDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		if rmErr := os.Remove(path); rmErr != nil {
			return fmt.Errorf("remove stale file at %s: %w", path, rmErr)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return os.MkdirAll(path, 0o750)
}
