package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAppsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List the P2P clients that would be updated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			enum := a.enumerator(nil)

			stop := withSpinner(cmd.Context(), "Looking for installed applications...")
			found := enum.DetectInstalled(cmd.Context())
			stop()

			installed := make(map[string]bool, len(found))
			for _, det := range found {
				installed[det.Target.Name()] = true

				line := fmt.Sprintf("%s %s", green("●"), bold(det.Name))
				if det.Version != "" {
					line += " " + det.Version
				}
				fmt.Fprintln(out, line)
				if det.InstallLocation != "" {
					fmt.Fprintf(out, "  %s %s\n", cyan("location:"), dim(det.InstallLocation))
				}
			}

			for _, t := range enum.Targets() {
				if installed[t.Name()] {
					continue
				}
				status := "not found"
				if !a.cfg.AppEnabled(t.Name()) {
					status = "disabled"
				}
				fmt.Fprintf(out, "%s %s %s\n", dim("○"), t.Name(), dim("("+status+")"))
			}

			if len(found) == 0 {
				fmt.Fprintf(out, "\n%s No supported applications found\n", yellow("!"))
			}
			return nil
		},
	}
}
