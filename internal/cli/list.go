package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/teamcutter/ipfilter/internal/domain"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := a.history()
			if err != nil {
				return err
			}
			defer history.Close()

			runs, err := history.List(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintf(out, "%s No updates recorded yet\n", dim("○"))
				return nil
			}

			for _, run := range runs {
				mark := green("✓")
				switch {
				case run.State == domain.StateCancelled.String() && run.Error == domain.ErrCancelled.Error():
					mark = yellow("○")
				case run.State != domain.StateDone.String():
					mark = red("✗")
				}

				source := run.Provider
				if run.Mirror != "" {
					source += "/" + run.Mirror
				}
				if source == "" {
					source = run.URL
				}

				fmt.Fprintf(out, "%s %s  %s  %s\n", mark, bold(run.StartedAt.Local().Format("2006-01-02 15:04")),
					run.State, dim(source))

				if run.Length > 0 {
					detail := humanize.Bytes(uint64(run.Length))
					if run.FromCache {
						detail += " " + yellow("from cache")
					}
					fmt.Fprintf(out, "  %s %s\n", cyan("list:"), detail)
				}
				if run.Error != "" {
					fmt.Fprintf(out, "  %s %s\n", cyan("error:"), run.Error)
				}
				for _, t := range run.Targets {
					line := fmt.Sprintf("  %s %s", dim("↳"), t.Name)
					if t.Status != domain.TargetApplied {
						line += " " + dim(string(t.Status))
					}
					if t.Error != "" {
						line += ": " + t.Error
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 for all)")
	return cmd
}
