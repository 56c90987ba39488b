// Package mirpass implements the MIR optimization pipeline of SPEC_FULL.md's
// MIR Passes section: pre-opt, const-fold, lower-aggregates, mem2reg, SSA
// destruction, compare+branch fusion, dead-code elimination, and a final
// CASM-compatibility validation pass.
//
// Grounded on the teacher's internal/bytecode/optimizer.go: a named,
// independently toggleable pass list driven by functional options
// (OptimizationPass/OptimizeOption/WithOptimizationPass), generalized from
// a flat chunk-rewriting optimizer into one that walks a MirModule's basic
// block graphs instead of a linear instruction tape.
package mirpass

import (
	"github.com/cairo-m/compiler/internal/diagnostic"
	"github.com/cairo-m/compiler/internal/mir"
	"github.com/cairo-m/compiler/internal/types"
)

// Pass names the togglable stages (spec.md §4.7). PreOpt, ConstFold, and
// LowerAggregates are always run regardless of config: every later stage
// assumes aggregates are already gone.
type Pass string

const (
	PassPreOpt           Pass = "pre-opt"
	PassConstFold        Pass = "const-fold"
	PassLowerAggregates  Pass = "lower-aggregates"
	PassMem2Reg          Pass = "mem2reg"
	PassSSADestruct      Pass = "ssa-destruct"
	PassFuseCompareBranch Pass = "fuse-compare-branch"
	PassDCE              Pass = "dce"
	PassValidate         Pass = "validate"
)

var mandatory = map[Pass]bool{
	PassPreOpt:          true,
	PassConstFold:       true,
	PassLowerAggregates: true,
	PassValidate:        true,
}

// Option toggles a pipeline pass on or off.
type Option func(*config)

type config struct {
	enabled map[Pass]bool
}

func defaultConfig() config {
	return config{enabled: map[Pass]bool{
		PassPreOpt: true, PassConstFold: true, PassLowerAggregates: true,
		PassMem2Reg: true, PassSSADestruct: true, PassFuseCompareBranch: true,
		PassDCE: true, PassValidate: true,
	}}
}

func (c config) isEnabled(p Pass) bool {
	if mandatory[p] {
		return true
	}
	if c.enabled == nil {
		return true
	}
	enabled, ok := c.enabled[p]
	if !ok {
		return true
	}
	return enabled
}

// WithPass enables or disables pass p. Disabling a mandatory pass
// (pre-opt/const-fold/lower-aggregates/validate) has no effect, matching
// SPEC_FULL.md's list of togglable passes.
func WithPass(p Pass, enabled bool) Option {
	return func(c *config) {
		if c.enabled == nil {
			c.enabled = make(map[Pass]bool)
		}
		c.enabled[p] = enabled
	}
}

// Run executes the pipeline over every function of m in spec order,
// returning any ICE diagnostics the validation pass raises.
func Run(m *mir.MirModule, in *types.Interner, opts ...Option) []diagnostic.Diagnostic {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	var diags []diagnostic.Diagnostic
	for _, fn := range m.Functions {
		if cfg.isEnabled(PassPreOpt) {
			PreOpt(fn)
		}
		if cfg.isEnabled(PassConstFold) {
			for ConstFold(fn) {
			}
		}
		if cfg.isEnabled(PassLowerAggregates) {
			for LowerAggregates(fn, in) {
			}
			for ConstFold(fn) {
			}
		}
		if cfg.isEnabled(PassMem2Reg) {
			Mem2Reg(fn, in)
		}
		if cfg.isEnabled(PassSSADestruct) {
			SSADestruct(fn)
		}
		if cfg.isEnabled(PassFuseCompareBranch) {
			FuseCompareBranch(fn)
		}
		if cfg.isEnabled(PassDCE) {
			for DCE(fn) {
			}
		}
		if cfg.isEnabled(PassValidate) {
			diags = append(diags, Validate(fn)...)
		}
	}
	return diags
}
