// Command convert2group replaces single computations with the group
// computations that supersede them.
package main

import (
	"os"

	"github.com/roach88/compgroup/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
