package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/teamcutter/ipfilter/internal/domain"
	"github.com/teamcutter/ipfilter/internal/manager"
	"github.com/teamcutter/ipfilter/internal/resolver"
)

func newUpdateCmd(a *app) *cobra.Command {
	var req resolver.Request
	var useCache bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download the latest list and apply it to every detected client",
		Long: "Download the latest IP filter list and install it into every detected P2P client.\n" +
			"Press Ctrl-C once to cancel the update.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			stop := withSpinner(ctx, "Resolving mirror...")
			sel, err := a.resolver(a.registry()).Resolve(ctx, req)
			stop()
			if err != nil {
				return err
			}

			mgr, history, err := a.newManager(newPromptConflicts(cmd.InOrStdin(), out), useCache)
			if err != nil {
				return err
			}
			defer history.Close()

			fmt.Fprintf(out, "%s %s\n", cyan("Downloading"), sel.URL)

			job := manager.Job{Provider: sel.Provider, Mirror: sel.Mirror.ID, URL: sel.URL}

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			defer signal.Stop(interrupt)

			mgr.Start(ctx, job)

			view := newProgressView(out)
		loop:
			for {
				select {
				case ev := <-mgr.Events():
					if ev.State == domain.StateDone || ev.State == domain.StateCancelled {
						view.finish()
						break loop
					}
					view.render(ev)
				case <-interrupt:
					mgr.Cancel()
				}
			}

			return printOutcome(out, mgr.Wait())
		},
	}

	cmd.Flags().StringVarP(&req.Provider, "provider", "p", "", "mirror provider (see 'ipfilter mirrors')")
	cmd.Flags().StringVarP(&req.Mirror, "mirror", "m", "", "mirror id within the provider")
	cmd.Flags().StringVar(&req.URL, "url", "", "download from this URL instead of a mirror")
	cmd.Flags().BoolVar(&useCache, "use-cache-on-failure", false, "apply the cached list when the download fails")
	return cmd
}

func printOutcome(out io.Writer, outcome *manager.Outcome) error {
	if outcome == nil {
		return errors.New("update did not run")
	}

	if outcome.State == domain.StateCancelled {
		if domain.IsCancelled(outcome.Err) || outcome.Err == nil {
			fmt.Fprintf(out, "%s Update cancelled\n", yellow("○"))
			return nil
		}
		return outcome.Err
	}

	if r := outcome.Result; r != nil {
		line := fmt.Sprintf("%s Filter list ready (%s", green("✓"), humanize.Bytes(uint64(r.Length)))
		if r.Timestamp != nil {
			line += fmt.Sprintf(", published %s", humanize.Time(*r.Timestamp))
		}
		line += ")"
		if outcome.FromCache {
			line += " " + yellow("from cache")
		}
		fmt.Fprintln(out, line)
	}

	if len(outcome.Targets) == 0 {
		fmt.Fprintf(out, "%s No supported applications found\n", dim("○"))
		return nil
	}

	for _, t := range outcome.Targets {
		name := t.Name
		if t.Version != "" {
			name += " " + dim(t.Version)
		}
		switch t.Status {
		case domain.TargetApplied:
			fmt.Fprintf(out, "  %s %s\n", green("✓"), name)
		case domain.TargetSkipped:
			fmt.Fprintf(out, "  %s %s %s\n", yellow("○"), name, dim("(skipped)"))
		default:
			fmt.Fprintf(out, "  %s %s: %s\n", red("✗"), name, t.Error)
		}
	}
	return nil
}
