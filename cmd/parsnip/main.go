// Command parsnip is the CLI driver over the library-first pkg/parsnip API:
// entity/relation/project/search/graph commands, export/import, serve (MCP),
// and config inspection, matching the operations internal/engine exposes.
package main

import (
	"os"

	"github.com/parsnip-dev/parsnip/cmd/parsnip/commands"
)

func main() {
	os.Exit(commands.Execute())
}
