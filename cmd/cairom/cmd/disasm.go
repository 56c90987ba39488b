package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cairo-m/compiler/pkg/cairom"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm [file]",
	Short: "Compile a Cairo-M source file and print its CASM disassembly",
	Long: `disasm runs the full pipeline and prints the entrypoint table,
resolved instruction stream, and rodata section via
internal/casm.Disassemble.

Examples:
  cairom disasm examples/fib.cm`,
	Args: cobra.ExactArgs(1),
	RunE: runDisasm,
}

func init() {
	rootCmd.AddCommand(disasmCmd)
}

func runDisasm(_ *cobra.Command, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		exitWithError("reading %s: %v", path, err)
	}

	engine := cairom.New(cairom.WithLogger(logger()))
	text, err := engine.Disasm(context.Background(), path, string(src))
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
