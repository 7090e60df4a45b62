package alertdispatch

import (
	"os"
	"path/filepath"
)

const scriptName = "threat_alert.sh"

const defaultScript = "#!/bin/bash\n" +
	"echo \"OpenSentinel got threat alert from $1.\"\n" +
	"echo \"Taking action...\"\n"

// ensureScript returns the path to the response script under dataDir,
// writing the default body if nothing exists there yet.
func ensureScript(dataDir string) (string, error) {
	path := filepath.Join(dataDir, scriptName)

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	if err := os.WriteFile(path, []byte(defaultScript), 0o750); err != nil {
		return "", err
	}
	return path, nil
}
