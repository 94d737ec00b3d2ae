package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/iii-hq/iii-cli/internal/cmd"
	"github.com/iii-hq/iii-cli/internal/exec"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := cmd.Execute(version, commit, date)
	if err == nil {
		return
	}

	// A child binary's exit status is forwarded as-is, not reported.
	var exitErr *exec.ExitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}

	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
	os.Exit(1)
}
