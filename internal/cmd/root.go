// Package cmd wires the CLI surface: dispatch commands for managed
// binaries plus the update, list, and version commands.
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iii-hq/iii-cli/internal/exec"
	"github.com/iii-hq/iii-cli/internal/platform"
	"github.com/iii-hq/iii-cli/internal/registry"
)

// app carries the shared wiring every command needs.
type app struct {
	version  string
	commit   string
	date     string
	registry registry.Registry
	dirs     platform.Dirs

	noUpdateCheck bool

	// apiBaseURL overrides the release API endpoint. Used in tests.
	apiBaseURL string
	// execRun overrides the binary handoff. Used in tests.
	execRun func(path string, args []string) error
}

func Execute(version, commit, date string) error {
	a := &app{
		version:  version,
		commit:   commit,
		date:     date,
		registry: registry.Default(),
		dirs:     platform.DefaultDirs(),
	}

	rootCmd := a.newRootCmd()
	rootCmd.SetArgs(a.stripGlobalFlags(os.Args[1:]))
	return rootCmd.Execute()
}

func (a *app) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "iii-cli",
		Short: "Unified CLI dispatcher for iii tools",
		Long: `iii-cli dispatches commands to the right versioned binary, installing
and updating them on demand from GitHub releases.

Binaries are installed to a PATH-visible directory and kept current by a
periodic background check that never delays your command.`,
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&a.noUpdateCheck, "no-update-check", false, "Disable background update and advisory checks")

	rootCmd.AddCommand(newDispatchCmd(a, "console", "Launch the iii web console"))
	rootCmd.AddCommand(newDispatchCmd(a, "create", "Create a new iii project from a template"))
	rootCmd.AddCommand(newDispatchCmd(a, "motia", "Create a new Motia project from a template"))
	rootCmd.AddCommand(newDispatchCmd(a, "start", "Start the iii process communication engine"))
	rootCmd.AddCommand(newUpdateCmd(a))
	rootCmd.AddCommand(newListCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))

	return rootCmd
}

// stripGlobalFlags consumes global flags that appear before the
// command name. Dispatch subcommands disable cobra flag parsing, so a
// global flag in front of them would otherwise go unparsed and leak
// into the child binary's argv. Anything after the command name belongs
// to the child and is left alone.
func (a *app) stripGlobalFlags(args []string) []string {
	filtered := make([]string, 0, len(args))
	seenCommand := false
	for _, arg := range args {
		if !seenCommand && arg == "--no-update-check" {
			a.noUpdateCheck = true
			continue
		}
		if !strings.HasPrefix(arg, "-") {
			seenCommand = true
		}
		filtered = append(filtered, arg)
	}
	return filtered
}

// execBinary hands off to the dispatched binary, via the test override
// when one is set.
func (a *app) execBinary(path string, args []string) error {
	if a.execRun != nil {
		return a.execRun(path, args)
	}
	return exec.Run(path, args)
}
