package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Show the cached filter list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			c := a.cache()

			cached := c.Get()
			if cached == nil {
				fmt.Fprintf(out, "%s No cached list at %s\n", dim("○"), c.Path())
				return nil
			}

			fmt.Fprintf(out, "%s %s\n", green("●"), bold(c.Path()))
			fmt.Fprintf(out, "  %s %s\n", cyan("size:"), humanize.Bytes(uint64(cached.Length)))
			if cached.Timestamp != nil {
				fmt.Fprintf(out, "  %s %s (%s)\n", cyan("published:"),
					cached.Timestamp.Local().Format("2006-01-02 15:04"), humanize.Time(*cached.Timestamp))
			}
			return nil
		},
	}

	cmd.AddCommand(newCacheClearCmd(a))
	return cmd
}

func newCacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the cached filter list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.cache()

			size, _ := c.Size()

			if err := c.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Cache cleared (%s freed)\n", green("✓"), humanize.Bytes(uint64(size)))
			return nil
		},
	}
}
