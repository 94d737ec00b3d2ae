//go:build windows

package exec

import (
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
)

// run spawns the binary as a child with inherited stdio and forwards
// its exit status. Process replacement is not available on Windows.
func run(path string, args []string) error {
	cmd := osexec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitCodeError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to execute %s: %w", path, err)
	}
	return nil
}
