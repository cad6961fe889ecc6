// Package formula maintains the named parameter table that drives
// dimensional constraint values. Parameters hold an expression over
// other parameters; the table rejects cycles and unknown references at
// commit time, keeping the prior value intact, and recalculates in
// dependency order.
package formula

import (
	"math"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	"github.com/conneroisu/sketchcad/internal/errors"
)

// builtins are always available inside formulas and never count as
// parameter references.
var builtins = map[string]any{
	"pi":   math.Pi,
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"sqrt": math.Sqrt,
	"abs":  math.Abs,
	"min":  math.Min,
	"max":  math.Max,
	"deg":  func(r float64) float64 { return r * 180 / math.Pi },
	"rad":  func(d float64) float64 { return d * math.Pi / 180 },
}

type param struct {
	formula string
	program *vm.Program
	deps    []string
	value   float64
}

// Table maps parameter names to formulas and their current values. It
// is not safe for concurrent use; the session layer serializes access.
type Table struct {
	params map[string]*param
}

// NewTable returns an empty parameter table.
func NewTable() *Table {
	return &Table{params: map[string]*param{}}
}

// Set defines or redefines a parameter. A syntax error, a reference to
// an undefined parameter, or a dependency cycle rejects the update and
// leaves any prior definition untouched.
func (t *Table) Set(name, formula string) error {
	if name == "" || builtins[name] != nil {
		return errors.Expression(errors.ExprSyntax, name, formula,
			"%q is not a valid parameter name", name)
	}
	program, deps, err := compile(name, formula)
	if err != nil {
		return err
	}
	for _, d := range deps {
		if _, ok := t.params[d]; !ok {
			return errors.Expression(errors.ExprUnknownReference, name, formula,
				"parameter %q is not defined", d)
		}
	}
	if cycle := t.wouldCycle(name, deps); cycle != nil {
		return errors.Expression(errors.ExprCycle, name, formula,
			"dependency cycle: %v", cycle)
	}

	prev, had := t.params[name]
	t.params[name] = &param{formula: formula, program: program, deps: deps}
	if err := t.Recalculate(); err != nil {
		// Runtime failures also leave the prior definition in place.
		if had {
			t.params[name] = prev
		} else {
			delete(t.params, name)
		}
		return err
	}
	return nil
}

// Delete removes a parameter. Removal fails while other parameters
// still reference it.
func (t *Table) Delete(name string) error {
	if _, ok := t.params[name]; !ok {
		return nil
	}
	for other, p := range t.params {
		for _, d := range p.deps {
			if d == name {
				return errors.Expression(errors.ExprUnknownReference, name, "",
					"parameter %q still references %q", other, name)
			}
		}
	}
	delete(t.params, name)
	return nil
}

// Get returns the current value of a parameter.
func (t *Table) Get(name string) (float64, bool) {
	p, ok := t.params[name]
	if !ok {
		return 0, false
	}
	return p.value, true
}

// Formula returns the formula text of a parameter.
func (t *Table) Formula(name string) (string, bool) {
	p, ok := t.params[name]
	if !ok {
		return "", false
	}
	return p.formula, true
}

// Names returns all parameter names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.params))
	for n := range t.params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Recalculate re-evaluates every parameter in dependency order.
func (t *Table) Recalculate() error {
	order, err := t.topoOrder()
	if err != nil {
		return err
	}
	env := t.env()
	for _, name := range order {
		p := t.params[name]
		v, err := run(name, p.formula, p.program, env)
		if err != nil {
			return err
		}
		p.value = v
		env[name] = v
	}
	return nil
}

// Eval evaluates a one-off formula against the current parameter
// values, such as a constraint's driving dimension.
func (t *Table) Eval(formula string) (float64, error) {
	program, deps, err := compile("", formula)
	if err != nil {
		return 0, err
	}
	env := t.env()
	for _, d := range deps {
		if _, ok := env[d]; !ok {
			return 0, errors.Expression(errors.ExprUnknownReference, "", formula,
				"parameter %q is not defined", d)
		}
	}
	return run("", formula, program, env)
}

func (t *Table) env() map[string]any {
	env := make(map[string]any, len(builtins)+len(t.params))
	for k, v := range builtins {
		env[k] = v
	}
	for n, p := range t.params {
		env[n] = p.value
	}
	return env
}

// wouldCycle checks whether defining name with the given deps closes a
// loop, returning the offending path.
func (t *Table) wouldCycle(name string, deps []string) []string {
	var path []string
	var visit func(n string) bool
	visit = func(n string) bool {
		path = append(path, n)
		if n == name {
			return true
		}
		if p, ok := t.params[n]; ok {
			for _, d := range p.deps {
				if visit(d) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		return false
	}
	for _, d := range deps {
		path = path[:0]
		if visit(d) {
			return append([]string{name}, path...)
		}
	}
	return nil
}

// topoOrder returns parameter names so that every parameter follows
// its dependencies. Set guarantees acyclicity, so a leftover here is
// an internal invariant violation.
func (t *Table) topoOrder() ([]string, error) {
	indeg := map[string]int{}
	dependents := map[string][]string{}
	for n, p := range t.params {
		indeg[n] += 0
		for _, d := range p.deps {
			indeg[n]++
			dependents[d] = append(dependents[d], n)
		}
	}
	var ready []string
	for n, d := range indeg {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(t.params))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, m := range dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
			}
		}
		sort.Strings(ready)
	}
	if len(order) != len(t.params) {
		errors.Invariant("parameter table contains a cycle after commit checks")
	}
	return order, nil
}

// compile parses a formula and extracts the parameter names it
// references.
func compile(name, formula string) (*vm.Program, []string, error) {
	tree, err := parser.Parse(formula)
	if err != nil {
		return nil, nil, errors.Expression(errors.ExprSyntax, name, formula, "%s", err)
	}
	v := &identVisitor{seen: map[string]bool{}}
	ast.Walk(&tree.Node, v)

	program, err := expr.Compile(formula, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, nil, errors.Expression(errors.ExprSyntax, name, formula, "%s", err)
	}
	sort.Strings(v.names)
	return program, v.names, nil
}

type identVisitor struct {
	names []string
	seen  map[string]bool
}

func (v *identVisitor) Visit(node *ast.Node) {
	id, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if _, builtin := builtins[id.Value]; builtin || v.seen[id.Value] {
		return
	}
	v.seen[id.Value] = true
	v.names = append(v.names, id.Value)
}

func run(name, formula string, program *vm.Program, env map[string]any) (float64, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return 0, errors.Expression(errors.ExprSyntax, name, formula, "%s", err)
	}
	switch v := out.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, errors.Expression(errors.ExprSyntax, name, formula,
			"formula yields %T, want a number", out)
	}
}
