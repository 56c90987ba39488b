package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cairo-m/compiler/internal/diagnostic"
)

var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "cairom",
	Short: "Cairo-M compiler",
	Long: `cairom compiles Cairo-M, a small imperative language, to CASM
(Cairo-M Assembly) for the M31-field-element VM.

Every subcommand runs the same incremental query pipeline
(parse -> semantic_index -> check -> validate -> lower_to_mir ->
generate_casm); "check" stops after validate, "mir"/"build"/"disasm"
run it through to MIR or CASM.`,
	Version: Version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every pipeline stage at debug level")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable ANSI color in diagnostic output")
}

// logger builds the *slog.Logger handed to query.New via pkg/cairom's
// WithLogger option. --verbose drops the level to Debug so the "parse",
// "semantic_index", "check", "validate", "lower_to_mir", and
// "generate_casm" lines query.Database emits are visible; otherwise only
// Warn/Error surface.
func logger() *slog.Logger {
	diagnostic.NoColor = noColor
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

func exitWithError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}
