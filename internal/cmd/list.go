package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iii-hq/iii-cli/internal/output"
	"github.com/iii-hq/iii-cli/internal/state"
)

// listEntry is one row of the list command in machine-readable form.
type listEntry struct {
	Binary      string `json:"binary" yaml:"binary"`
	Version     string `json:"version" yaml:"version"`
	InstalledAt string `json:"installed_at" yaml:"installed_at"`
	Command     string `json:"command" yaml:"command"`
}

func newListCmd(a *app) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show installed binaries and their versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			return a.runList(cmd, format)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	return cmd
}

func (a *app) runList(cmd *cobra.Command, format output.Format) error {
	w := cmd.OutOrStdout()

	st, err := state.Load(a.dirs.StateFile())
	if err != nil {
		return err
	}

	names := make([]string, 0, len(st.Binaries))
	for name := range st.Binaries {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]listEntry, 0, len(names))
	for _, name := range names {
		bin := st.Binaries[name]
		entries = append(entries, listEntry{
			Binary:      name,
			Version:     bin.Version.String(),
			InstalledAt: bin.InstalledAt.Format("2006-01-02"),
			Command:     a.registry.CommandForBinary(name),
		})
	}

	if format != output.FormatText {
		return output.Encode(w, format, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "  No binaries installed yet. Run a command to auto-install its dependency.")
		fmt.Fprintf(w, "  Available commands: %s\n", strings.Join(a.registry.AvailableCommands(), ", "))
		return nil
	}

	fmt.Fprintln(w, "  Installed binaries:")
	fmt.Fprintln(w)
	for _, e := range entries {
		fmt.Fprintf(w, "  %s %s (v%s) — installed %s — command: iii-cli %s\n",
			color.New(color.Faint).Sprint("•"),
			color.New(color.Bold).Sprint(e.Binary),
			e.Version, e.InstalledAt, e.Command)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Storage: %s\n", color.New(color.Faint).Sprint(a.dirs.Bin))
	return nil
}
