//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// IsProcessRunning reports whether a process with the given executable name
// is running, ignoring the current process. The ".exe" suffix and letter case
// are ignored on Windows.
func IsProcessRunning(name string) (bool, error) {
	if name == "" {
		return false, nil
	}

	processList, err := ps.Processes()
	if err != nil {
		return false, err
	}

	thisProcessID := os.Getpid()
	wanted := normalizeExecutable(name)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if normalizeExecutable(process.Executable()) == wanted {
			return true, nil
		}
	}

	return false, nil
}

func normalizeExecutable(name string) string {
	if runtime.GOOS != "windows" {
		return name
	}

	return strings.TrimSuffix(strings.ToLower(name), ".exe")
}
