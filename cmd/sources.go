package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/content-harvester/internal/cache"
	"github.com/JakeFAU/content-harvester/internal/harvest"
)

// newSourcesCmd creates the 'sources' subcommand, which prints the resolved
// source list without contacting anything.
func newSourcesCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Lists the configured sources and their cache keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			sources := cfg.EnabledSources()
			if all {
				sources = cfg.Sources
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tENABLED\tMAX ITEMS\tPARAMS\tCACHE KEY")
			for _, s := range sources {
				fmt.Fprintf(w, "%s\t%t\t%d\t%s\t%s\n",
					s.Name(),
					cfg.TypeEnabled(s.Type),
					s.MaxItems,
					formatParams(s),
					cache.Key(cache.ClassContent, s),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include sources whose type is disabled")
	return cmd
}

func formatParams(s harvest.SourceConfig) string {
	if len(s.Params) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(s.Params))
	for k, v := range s.Params {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
