package exec

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunMissingBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent")

	err := Run(path, nil)
	var notFound *BinaryNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *BinaryNotFoundError", err)
	}
	if !strings.Contains(notFound.Path, "nonexistent") {
		t.Errorf("Path = %s", notFound.Path)
	}
}

func TestRunDirectoryIsNotABinary(t *testing.T) {
	err := Run(t.TempDir(), nil)
	var notFound *BinaryNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("error = %v, want *BinaryNotFoundError for a directory", err)
	}
}

func TestExitCodeError(t *testing.T) {
	err := &ExitCodeError{Code: 3}
	if err.Error() != "exit status 3" {
		t.Errorf("Error() = %q", err.Error())
	}
}
