// Command reactor runs scenario files against a demo reactor Core.
package main

import (
	"context"
	"os"

	"github.com/roach88/reactor/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
