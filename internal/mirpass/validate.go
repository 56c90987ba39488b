package mirpass

import (
	"fmt"

	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/internal/mir"
)

var aggregateKinds = map[mir.Kind]bool{
	mir.KMakeTuple: true, mir.KExtractTupleElement: true, mir.KInsertTuple: true,
	mir.KMakeStruct: true, mir.KExtractStructField: true, mir.KInsertField: true,
}

// Validate implements spec.md §4.7 step 8: the final CASM-compatibility
// gate. Anything it rejects is a bug in an earlier pass, not a user error,
// so findings are reported as internal compiler errors (spec.md §6.3's
// 4000-series codes) rather than ordinary diagnostics.
func Validate(fn *mir.MirFunction) []diagnostic.Diagnostic {
	var diags []diagnostic.Diagnostic
	ice := func(format string, args ...any) {
		diags = append(diags, diagnostic.New(diagnostic.CodeInternalCompilerError, diagnostic.Error,
			fmt.Sprintf("%s: "+format, append([]any{fn.Name}, args...)...), diagnostic.Label{}))
	}

	defined := map[mir.ValueId]bool{}
	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		for _, inst := range blk.Instructions {
			if aggregateKinds[inst.Kind] {
				ice("aggregate instruction %s survived the optimization pipeline", inst.Kind)
			}
			if inst.Defines {
				if defined[inst.Dst] {
					ice("value v%d has more than one definition", inst.Dst)
				}
				defined[inst.Dst] = true
			}
		}
	}

	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		if !blk.Terminated {
			ice("block bb%d was never terminated", bi)
			continue
		}
		switch blk.Terminator.Kind {
		case mir.TGoto:
			if int(blk.Terminator.Target) >= len(fn.Blocks) {
				ice("block bb%d gotos to out-of-range block bb%d", bi, blk.Terminator.Target)
			}
		case mir.TIf:
			if int(blk.Terminator.Then) >= len(fn.Blocks) || int(blk.Terminator.Else) >= len(fn.Blocks) {
				ice("block bb%d branches to an out-of-range block", bi)
			}
		}
	}

	return diags
}
