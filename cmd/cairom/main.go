// Command cairom is the Cairo-M compiler CLI.
package main

import (
	"fmt"
	"os"

	"github.com/cairo-m/compiler/cmd/cairom/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
