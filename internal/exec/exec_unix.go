//go:build !windows

package exec

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// run replaces the current process image. The argument vector is built
// directly, never through a shell, so passthrough args cannot inject.
// It only returns when the syscall fails.
func run(path string, args []string) error {
	argv := append([]string{path}, args...)
	if err := unix.Exec(path, argv, os.Environ()); err != nil {
		return fmt.Errorf("failed to execute %s: %w", path, err)
	}
	// Unreachable: Exec does not return on success.
	return nil
}
