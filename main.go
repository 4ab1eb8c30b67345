// appgraph - Cross-reference explorer for YAML application definitions.
//
// appgraph scans an application definition into a directed multigraph,
// enabling regex search, interactive exploration, and impact tracing
// across entities, formflows, templates, and the rules that bind them.
package main

import (
	"fmt"
	"os"

	"github.com/dmaclachlan/appgraph/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
