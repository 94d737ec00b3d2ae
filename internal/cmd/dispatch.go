package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iii-hq/iii-cli/internal/advisory"
	"github.com/iii-hq/iii-cli/internal/config"
	"github.com/iii-hq/iii-cli/internal/github"
	"github.com/iii-hq/iii-cli/internal/platform"
	"github.com/iii-hq/iii-cli/internal/state"
	"github.com/iii-hq/iii-cli/internal/update"
)

// newDispatchCmd builds a passthrough command. Flag parsing is
// disabled so every argument after the command name, hyphens included,
// reaches the child binary untouched.
func newDispatchCmd(a *app, command, short string) *cobra.Command {
	return &cobra.Command{
		Use:                command + " [args...]",
		Short:              short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDispatch(cmd, command, args)
		},
	}
}

func (a *app) runDispatch(cmd *cobra.Command, command string, args []string) error {
	errw := cmd.ErrOrStderr()
	ctx := cmd.Context()

	spec, subcommand, err := a.registry.ResolveCommand(command)
	if err != nil {
		return err
	}
	if err := platform.CheckPlatformSupport(spec); err != nil {
		return err
	}
	if err := a.dirs.Ensure(); err != nil {
		return err
	}

	// Config and state problems degrade to defaults: a corrupt file
	// must never block dispatching the user's command.
	cfg, err := config.Load(a.dirs.Data)
	if err != nil {
		fmt.Fprintf(errw, "%s %v\n", color.YellowString("warning:"), err)
		cfg = config.Default()
	}
	st, err := state.Load(a.dirs.StateFile())
	if err != nil {
		fmt.Fprintf(errw, "%s failed to load state: %v\n", color.YellowString("warning:"), err)
		st = state.Default()
	}
	if cfg.UpdateCheckIntervalHours > 0 {
		st.UpdateCheckIntervalHours = cfg.UpdateCheckIntervalHours
	}

	client := github.NewClient(a.version).WithToken(cfg.GitHubToken)
	if a.apiBaseURL != "" {
		client = client.WithBaseURL(a.apiBaseURL)
	}
	updater := &update.Updater{
		Client:      client,
		Registry:    a.registry,
		Dirs:        a.dirs,
		State:       st,
		Out:         errw,
		SelfVersion: a.version,
	}

	// Resolve the binary: managed dir first, then PATH, then install.
	var binaryPath string
	managed := a.dirs.BinaryPath(spec.Name)
	if info, err := os.Stat(managed); err == nil && !info.IsDir() {
		binaryPath = managed
	} else if existing, ok := a.dirs.FindExistingBinary(spec.Name); ok {
		fmt.Fprintf(errw, "  %s Found existing %s at %s\n",
			color.GreenString("✓"), spec.Name, color.New(color.Faint).Sprint(existing))
		binaryPath = existing
	} else {
		fmt.Fprintf(errw, "  Retrieving dependencies for %s...\n", color.New(color.Bold).Sprint(command))

		if _, err := updater.UpdateBinary(ctx, spec); err != nil {
			return err
		}
		if err := st.Save(a.dirs.StateFile()); err != nil {
			fmt.Fprintf(errw, "%s failed to save state: %v\n", color.YellowString("warning:"), err)
		}

		fmt.Fprintf(errw, "  %s %s installed successfully\n", color.GreenString("✓"), spec.Name)
		printPathHint(errw, spec.Name)
		fmt.Fprintln(errw)

		binaryPath = managed
	}

	if !a.noUpdateCheck && !cfg.DisableUpdateCheck {
		updates, completed := updater.BackgroundCheck(ctx, update.DefaultBackgroundTimeout)
		if completed {
			update.PrintNotifications(errw, a.registry, updates)

			if doc, err := advisory.Fetch(ctx, client, cfg.AdvisoriesURL); err == nil {
				advisory.PrintWarnings(errw, a.registry, advisory.Check(doc, st))
			}

			st.MarkUpdateChecked()
			if err := st.Save(a.dirs.StateFile()); err != nil {
				fmt.Fprintf(errw, "%s failed to save state: %v\n", color.YellowString("warning:"), err)
			}
		}
	}

	childArgs := args
	if subcommand != "" {
		childArgs = append([]string{subcommand}, args...)
	}

	// On Unix this call replaces the process and never returns.
	return a.execBinary(binaryPath, childArgs)
}

// printPathHint nudges the user when the install directory is not on
// PATH, so a fresh install is immediately runnable by name.
func printPathHint(w io.Writer, binaryName string) {
	if runtime.GOOS == "windows" {
		return
	}
	suffix := filepath.Join(".local", "bin")
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if strings.HasSuffix(dir, suffix) {
			return
		}
	}
	fmt.Fprintf(w, "  %s add %s to your PATH to run %s directly\n",
		color.New(color.Faint).Sprint("hint:"), color.New(color.Bold).Sprint("~/.local/bin"), binaryName)
}
