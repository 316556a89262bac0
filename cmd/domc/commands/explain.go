package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hybridui/dombridge/internal/resolver"
)

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [importer] [imported]",
		Short: "Show how one import edge resolves",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := scanGraph()
			if err != nil {
				return err
			}

			res, err := g.ResolveImport(args[0], args[1])
			if err != nil {
				return err
			}
			switch res {
			case resolver.ResolveProxyFactory:
				fmt.Printf("%s -> %s: proxy factory (%s)\n",
					args[0], args[1], resolver.FactoryPath(args[1]))
			default:
				fmt.Printf("%s -> %s: direct\n", args[0], args[1])
			}
			return nil
		},
	}
}
