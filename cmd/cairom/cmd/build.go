package cmd

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cairo-m/compiler/pkg/cairom"
)

var buildOut string

var buildCmd = &cobra.Command{
	Use:   "build [file]",
	Short: "Compile a Cairo-M source file to a CASM program",
	Long: `build runs the full pipeline (parse -> semantic_index -> check ->
validate -> lower_to_mir -> generate_casm) and writes the resulting
program as a flat stream of little-endian u32 words: instructions
first in PC order, then rodata. Defaults to stdout.

Examples:
  cairom build examples/fib.cm -o fib.casm`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVarP(&buildOut, "output", "o", "", "output file (default stdout)")
}

func runBuild(_ *cobra.Command, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		exitWithError("reading %s: %v", path, err)
	}

	engine := cairom.New(cairom.WithLogger(logger()))
	prog, err := engine.Build(context.Background(), path, string(src))
	if compileErr, ok := err.(*cairom.ErrCompile); ok {
		for _, d := range compileErr.Diagnostics {
			fmt.Print(d.Render(string(src)))
		}
		os.Exit(1)
	} else if err != nil {
		exitWithError("%v", err)
	}

	out := os.Stdout
	if buildOut != "" {
		f, err := os.Create(buildOut)
		if err != nil {
			exitWithError("creating %s: %v", buildOut, err)
		}
		defer f.Close()
		out = f
	}

	words := make([]uint32, 0, len(prog.Instructions)*2)
	for _, in := range prog.Instructions {
		switch in.Width() {
		case 0: // OpMark: a label anchor, contributes nothing to the stream
			continue
		case 2:
			words = append(words, uint32(in.Op))
			if in.HasImm {
				words = append(words, uint32(in.Imm))
			} else {
				words = append(words, uint32(in.PC))
			}
		default:
			words = append(words, uint32(in.Op))
		}
	}
	for _, b := range prog.Blobs {
		for _, v := range b.Values {
			words = append(words, uint32(v))
		}
	}

	buf := make([]byte, 4)
	for _, w := range words {
		binary.LittleEndian.PutUint32(buf, w)
		if _, err := out.Write(buf); err != nil {
			exitWithError("writing output: %v", err)
		}
	}
	return nil
}
