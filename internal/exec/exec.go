// Package exec hands the process over to a dispatched binary.
//
// On Unix the handoff replaces the process image entirely, so the
// child owns the terminal, PID, and file descriptors. On Windows the
// binary runs as a child with inherited stdio and its exit code is
// forwarded. Either way, all pending output must be flushed before
// calling Run.
package exec

import (
	"fmt"
	"os"
)

// BinaryNotFoundError reports a dispatch target missing from disk.
type BinaryNotFoundError struct {
	Path string
}

func (e *BinaryNotFoundError) Error() string {
	return fmt.Sprintf("binary not found: %s", e.Path)
}

// ExitCodeError carries a child's non-zero exit status so main can
// forward it as the process exit code without printing anything.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Run executes the binary at path with args. On Unix a successful call
// never returns. On Windows it returns nil for a zero exit and an
// ExitCodeError otherwise.
func Run(path string, args []string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return &BinaryNotFoundError{Path: path}
	}

	flushOutput()

	return run(path, args)
}

func flushOutput() {
	_ = os.Stdout.Sync()
	_ = os.Stderr.Sync()
}
