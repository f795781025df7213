package docflip

import (
	"fmt"
	"os/exec"
)

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

// resolveBinary finds an external tool, reporting ErrBackendUnavailable
// when it is not installed.
func resolveBinary(name string) (string, error) {
	path, err := lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found: %v", ErrBackendUnavailable, name, err)
	}
	return path, nil
}
