package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func graphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the scanned module graph with boundary markers",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := scanGraph()
			if err != nil {
				return err
			}

			var paths []string
			for p := range g.Modules {
				paths = append(paths, p)
			}
			sort.Strings(paths)

			for _, p := range paths {
				mod := g.Modules[p]
				marker := " "
				if mod.Boundary {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, p)
				for _, dep := range mod.Imports {
					fmt.Printf("    -> %s\n", dep)
				}
				for _, ext := range mod.External {
					fmt.Printf("    -> %s (external)\n", ext)
				}
			}
			fmt.Printf("%d modules, %d boundaries\n", len(paths), len(g.Boundaries()))
			return nil
		},
	}
}
