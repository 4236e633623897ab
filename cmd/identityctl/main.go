// Command identityctl manages identity accounts against a SQL record store.
package main

import (
	"context"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newCLI().Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
