// assetpipe builds stylesheets and script bundles from a task graph.
package main

import (
	"os"

	"github.com/hupe1980/assetpipe/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
