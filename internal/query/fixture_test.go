package query

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/cairo-m/compiler/internal/casm"
	"github.com/cairo-m/compiler/internal/mir"
)

// TestFixtures runs every testdata/fixtures/*.cm source through the full
// pipeline and snapshots its observable output with go-snaps, grounded on
// the teacher's fixture_test.go (internal/interp). Files whose name ends
// in "_error" are expected to fail validation and snapshot their rendered
// diagnostics; every other file is expected to compile cleanly and
// snapshots its textual MIR and CASM disassembly instead.
func TestFixtures(t *testing.T) {
	fixtures, err := filepath.Glob(filepath.Join("..", "..", "testdata", "fixtures", "*.cm"))
	if err != nil {
		t.Fatalf("globbing fixtures: %v", err)
	}
	if len(fixtures) == 0 {
		t.Fatal("no fixtures found under testdata/fixtures")
	}

	for _, path := range fixtures {
		path := path
		name := strings.TrimSuffix(filepath.Base(path), ".cm")
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("reading %s: %v", path, err)
			}

			db := New(nil)
			db.SetText(name, string(src))
			ctx := context.Background()

			diags, err := db.Validate(ctx, name)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}

			if strings.HasSuffix(name, "_error") {
				if len(diags) == 0 {
					t.Fatalf("%s: expected validation errors, got none", name)
				}
				var sb strings.Builder
				for _, d := range diags {
					sb.WriteString(d.Render(string(src)))
				}
				snaps.MatchSnapshot(t, name+"_diagnostics", sb.String())
				return
			}

			if len(diags) != 0 {
				var sb strings.Builder
				for _, d := range diags {
					sb.WriteString(d.Render(string(src)))
				}
				t.Fatalf("%s: unexpected diagnostics:\n%s", name, sb.String())
			}

			mod, err := db.LowerToMIR(ctx, name)
			if err != nil {
				t.Fatalf("LowerToMIR: %v", err)
			}
			snaps.MatchSnapshot(t, name+"_mir", mir.Print(mod, db.Interner()))

			prog, err := db.GenerateCASM(ctx, name)
			if err != nil {
				t.Fatalf("GenerateCASM: %v", err)
			}
			snaps.MatchSnapshot(t, name+"_casm", casm.Disassemble(prog))
		})
	}
}
