package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/pkg/cairom"
)

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Parse, type-check, and validate a Cairo-M source file",
	Long: `check runs the pipeline through validate and reports every
diagnostic (errors, warnings, and info) without lowering to MIR or
CASM.

Examples:
  cairom check examples/fib.cm
  cairom check --no-color examples/fib.cm`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(_ *cobra.Command, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		exitWithError("reading %s: %v", path, err)
	}

	engine := cairom.New(cairom.WithLogger(logger()))
	diags, err := engine.Check(context.Background(), path, string(src))
	if err != nil {
		exitWithError("%v", err)
	}

	errCount := 0
	for _, d := range diags {
		fmt.Print(d.Render(string(src)))
		if d.Severity == diagnostic.Error {
			errCount++
		}
	}
	if errCount > 0 {
		os.Exit(1)
	}
	return nil
}
