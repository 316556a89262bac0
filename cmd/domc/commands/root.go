package commands

import (
	"github.com/spf13/cobra"

	"github.com/hybridui/dombridge/internal/resolver"
)

var (
	srcDir  string
	include []string
	exclude []string
)

func scanGraph() (*resolver.Graph, error) {
	return resolver.Scan(srcDir, resolver.ScanOptions{
		Include: include,
		Exclude: exclude,
	})
}

func Execute() error {
	root := &cobra.Command{
		Use:          "domc",
		Short:        "Boundary resolver for DOM-rendered components",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&srcDir, "src", ".", "source tree to scan")
	root.PersistentFlags().StringSliceVar(&include, "include", nil, "include globs (default JS/TS extensions)")
	root.PersistentFlags().StringSliceVar(&exclude, "exclude", nil, "exclude globs (default node_modules)")

	root.AddCommand(buildCmd(), graphCmd(), explainCmd())
	return root.Execute()
}
