package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hybridui/dombridge/internal/resolver"
)

func buildCmd() *cobra.Command {
	var (
		outDir   string
		compress bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Resolve boundaries and emit bundles, stubs and manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := scanGraph()
			if err != nil {
				return err
			}
			if len(g.Boundaries()) == 0 {
				return fmt.Errorf("no \"use dom\" modules found under %s", srcDir)
			}

			build, err := resolver.Resolve(g)
			if err != nil {
				return err
			}
			manifest, err := resolver.Emit(build, resolver.EmitOptions{
				OutDir:   outDir,
				Compress: compress,
			})
			if err != nil {
				return err
			}

			for _, b := range manifest.Bundles {
				fmt.Printf("%-40s -> %s (%d files)\n", b.Module, b.Artifact, len(b.Files))
			}
			fmt.Printf("%d bundle(s), %d rewrite(s) -> %s\n",
				len(manifest.Bundles), len(build.Rewrites), outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "./dist", "output directory")
	cmd.Flags().BoolVar(&compress, "compress", true, "emit gzip siblings for the asset server")
	return cmd
}
