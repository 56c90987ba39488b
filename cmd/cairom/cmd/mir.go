package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cairo-m/compiler/pkg/cairom"
)

var mirCmd = &cobra.Command{
	Use:   "mir [file]",
	Short: "Lower a Cairo-M source file to optimized MIR and print it",
	Long: `mir runs the pipeline through lower_to_mir (parse, semantic_index,
check, validate, the mirpass optimization pipeline) and prints the
resulting textual MIR. Validation errors are printed instead and mir
exits non-zero without attempting to lower.

Examples:
  cairom mir examples/fib.cm`,
	Args: cobra.ExactArgs(1),
	RunE: runMIR,
}

func init() {
	rootCmd.AddCommand(mirCmd)
}

func runMIR(_ *cobra.Command, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		exitWithError("reading %s: %v", path, err)
	}

	engine := cairom.New(cairom.WithLogger(logger()))
	text, err := engine.MIR(context.Background(), path, string(src))
	if compileErr, ok := err.(*cairom.ErrCompile); ok {
		for _, d := range compileErr.Diagnostics {
			fmt.Print(d.Render(string(src)))
		}
		os.Exit(1)
	} else if err != nil {
		exitWithError("%v", err)
	}
	fmt.Print(text)
	return nil
}
