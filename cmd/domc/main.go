// Command domc is the boundary resolver CLI: it scans a source tree
// for "use dom" modules, partitions the import graph, and emits the
// bundles, proxy factory stubs and manifest the bridge daemon serves.
package main

import (
	"os"

	"github.com/hybridui/dombridge/cmd/domc/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
