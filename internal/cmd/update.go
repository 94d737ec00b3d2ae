package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iii-hq/iii-cli/internal/config"
	"github.com/iii-hq/iii-cli/internal/github"
	"github.com/iii-hq/iii-cli/internal/state"
	"github.com/iii-hq/iii-cli/internal/update"
)

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update [command]",
		Short: "Update iii-cli and managed binaries to their latest versions",
		Long: `Update managed binaries to their latest GitHub releases.

Examples:
  iii-cli update              # Update iii-cli + all managed binaries
  iii-cli update self         # Update only iii-cli
  iii-cli update iii-cli      # Update only iii-cli
  iii-cli update console      # Update only iii-console`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			return a.runUpdate(cmd, target)
		},
	}
}

func (a *app) runUpdate(cmd *cobra.Command, target string) error {
	errw := cmd.ErrOrStderr()
	ctx := cmd.Context()

	if err := a.dirs.Ensure(); err != nil {
		return err
	}

	// Unlike dispatch, an explicit update must not paper over a corrupt
	// state file: a failed load here is a hard error.
	st, err := state.Load(a.dirs.StateFile())
	if err != nil {
		return err
	}

	cfg, err := config.Load(a.dirs.Data)
	if err != nil {
		fmt.Fprintf(errw, "%s %v\n", color.YellowString("warning:"), err)
		cfg = config.Default()
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

	var outcomes []update.Outcome
	switch target {
	case "self", "iii-cli":
		res, err := updater.SelfUpdate(ctx)
		outcomes = []update.Outcome{{Binary: "iii-cli", Result: res, Err: err}}
	case "":
		fmt.Fprintln(errw, "  Checking all binaries for updates...")
		outcomes = updater.UpdateAll(ctx)
	default:
		spec, err := a.registry.ResolveBinaryForUpdate(target)
		if err != nil {
			return err
		}
		res, err := updater.UpdateBinary(ctx, spec)
		outcomes = []update.Outcome{{Binary: spec.Name, Result: res, Err: err}}
	}

	failed := 0
	selfUpdated := false
	for _, o := range outcomes {
		update.PrintOutcome(errw, o)
		if o.Err != nil {
			failed++
			continue
		}
		if o.Binary == "iii-cli" && !o.Result.AlreadyUpToDate {
			selfUpdated = true
		}
	}

	if selfUpdated {
		fmt.Fprintln(errw)
		fmt.Fprintf(errw, "  %s iii-cli has been updated. Restart your shell or run the command again to use the new version.\n",
			color.CyanString("note:"))
	}

	st.MarkUpdateChecked()
	if err := st.Save(a.dirs.StateFile()); err != nil {
		fmt.Fprintf(errw, "%s failed to save state: %v\n", color.YellowString("warning:"), err)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d updates failed", failed, len(outcomes))
	}
	return nil
}
