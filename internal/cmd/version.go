package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "iii-cli version %s\n", a.version)
			fmt.Fprintf(w, "  commit: %s\n", a.commit)
			fmt.Fprintf(w, "  built:  %s\n", a.date)
			return nil
		},
	}
}
