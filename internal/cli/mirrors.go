package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teamcutter/ipfilter/internal/domain"
)

func newMirrorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mirrors [provider]",
		Short: "List mirror providers and their mirrors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := a.registry()
			out := cmd.OutOrStdout()

			providers := reg.Providers()
			if len(args) == 1 {
				p, ok := reg.Get(args[0])
				if !ok {
					return fmt.Errorf("unknown provider %q (known: %v)", args[0], reg.Names())
				}
				providers = []domain.MirrorProvider{p}
			}

			for _, p := range providers {
				stop := withSpinner(cmd.Context(), fmt.Sprintf("Loading %s mirrors...", p.Name()))
				mirrors := p.Mirrors(cmd.Context())
				stop()

				label := bold(p.Name())
				if p.Name() == a.cfg.Provider {
					label += " " + green("(default)")
				}
				fmt.Fprintf(out, "%s %s  %s\n", green("●"), label, dim(p.Description()))

				if len(mirrors) == 0 {
					fmt.Fprintf(out, "  %s no mirrors available\n", dim("○"))
				}
				for _, m := range mirrors {
					line := fmt.Sprintf("  %s %s", cyan(m.ID), m.Name)
					if m.Description != "" {
						line += "  " + dim(m.Description)
					}
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
