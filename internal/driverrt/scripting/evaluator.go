// Package scripting isolates the parameter transform language a
// hardware driver uses to map a user-facing parameter (e.g. "gain_db")
// onto a raw wire value (e.g. a 0-255 DAC code), grounded on
// rust/domain-server/src/instance_driver/scripting.rs's
// ScriptingEngine. The original embeds a full JS engine (boa_engine);
// no JS VM dependency is present anywhere in this pack, so SPEC_FULL.md
// supplement 11 keeps the isolation boundary (a compiled Script that
// can be Evaluated against an environment, never panicking the driver
// actor) but backs it with a small pure-Go arithmetic expression
// evaluator instead of an embedded scripting language.
package scripting

import (
	"fmt"
	"math"
)

// Env is the variable bindings a Script evaluates against - typically
// "value" (the raw parameter write) plus any named instance state a
// transform needs to reference.
type Env map[string]float64

// Evaluator compiles and runs parameter transform scripts without
// ever panicking the calling driver actor, matching ScriptingEngine's
// contract of returning a default/error value instead of unwinding.
type Evaluator interface {
	Compile(source string) (Script, error)
	Evaluate(script Script, env Env) (float64, error)
}

// Script is an opaque compiled transform.
type Script interface {
	source() string
}

// arithEvaluator is the default Evaluator: a recursive-descent
// evaluator for a minimal expression grammar (+ - * / ^ parens, unary
// minus, numeric literals, identifiers bound via Env, and two builtin
// functions mirroring the original's registered globals,
// gainFactorToDb and dbToGainFactor).
type arithEvaluator struct{}

// New returns the default pure-Go expression Evaluator.
func New() Evaluator { return arithEvaluator{} }

type compiledScript struct {
	src  string
	expr expr
}

func (c compiledScript) source() string { return c.src }

func (arithEvaluator) Compile(source string) (Script, error) {
	p := &parser{tokens: tokenize(source)}
	e, err := p.parseExpr()
	if err != nil {
		return nil, fmt.Errorf("scripting: compile %q: %w", source, err)
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("scripting: compile %q: unexpected trailing input", source)
	}
	return compiledScript{src: source, expr: e}, nil
}

func (arithEvaluator) Evaluate(script Script, env Env) (result float64, err error) {
	cs, ok := script.(compiledScript)
	if !ok {
		return 0, fmt.Errorf("scripting: script not produced by this evaluator")
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = 0, fmt.Errorf("scripting: evaluate %q: %v", cs.src, r)
		}
	}()

	return cs.expr.eval(env), nil
}

func gainFactorToDb(gain float64) float64 { return 20 * math.Log10(gain) }

func dbToGainFactor(db float64) float64 { return math.Pow(10, db/20) }
