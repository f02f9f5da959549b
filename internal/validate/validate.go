// Package validate checks a plan against a capability catalog before any code
// is generated. Every problem becomes a Diagnostic; nothing is fail-fast.
package validate

import (
	"fmt"
	"go/token"
	"go/types"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/kingrea/agx/internal/capability"
	"github.com/kingrea/agx/internal/plan"
)

// Code classifies a diagnostic.
type Code string

const (
	CodeMalformedStep     Code = "malformed_step"
	CodeUnknownFunction   Code = "unknown_function"
	CodeUnknownParameter  Code = "unknown_parameter"
	CodeMissingTypeHint   Code = "missing_type_hint"
	CodeTypeMismatch      Code = "type_mismatch"
	CodeMissingReturnType Code = "missing_return_type"
	CodeMissingParameter  Code = "missing_parameter"
	CodeUndefinedVariable Code = "undefined_variable"
	CodeInvalidVariable   Code = "invalid_variable"
	CodeVoidAssignment    Code = "void_assignment"
	CodeConflictingType   Code = "conflicting_type"
	CodeInvalidLiteral    Code = "invalid_literal"
	// CodeNoPlan is attached to step 0 when no plan could be obtained at all.
	CodeNoPlan Code = "no_plan"
)

// Diagnostic is one validation problem attributed to a 1-based step. Step 0
// refers to the plan as a whole.
type Diagnostic struct {
	Step       int
	Code       Code
	Message    string
	Suggestion string
}

func (d Diagnostic) String() string {
	prefix := "Plan"
	if d.Step > 0 {
		prefix = fmt.Sprintf("Step %d", d.Step)
	}
	if d.Suggestion != "" {
		return fmt.Sprintf("%s: %s Did you mean '%s'?", prefix, d.Message, d.Suggestion)
	}
	return prefix + ": " + d.Message
}

// Result is the outcome of validating one plan.
type Result struct {
	Diagnostics []Diagnostic
}

// Valid reports whether no diagnostics were produced.
func (r Result) Valid() bool {
	return len(r.Diagnostics) == 0
}

// Strings renders every diagnostic in order.
func (r Result) Strings() []string {
	out := make([]string, 0, len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		out = append(out, d.String())
	}
	return out
}

// Err folds the diagnostics into a single error, or nil when valid.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return fmt.Errorf("validate: %d problem(s):\n  %s", len(r.Diagnostics), strings.Join(r.Strings(), "\n  "))
}

// Plan validates p against catalog. It never panics on malformed content and
// never mutates its inputs, so concurrent calls over independent plans are safe.
func Plan(p plan.Plan, catalog capability.Catalog) Result {
	v := &validator{
		catalog:  catalog,
		assigned: map[string]string{},
	}
	for idx, step := range p {
		v.step(idx+1, step)
	}
	return Result{Diagnostics: v.diags}
}

type validator struct {
	catalog capability.Catalog
	// assigned maps each bound variable to the Go type of its most recent
	// binding. Variables bound by unknown functions map to "".
	assigned map[string]string
	diags    []Diagnostic
	names    []string
}

func (v *validator) add(step int, code Code, format string, args ...any) *Diagnostic {
	v.diags = append(v.diags, Diagnostic{Step: step, Code: code, Message: fmt.Sprintf(format, args...)})
	return &v.diags[len(v.diags)-1]
}

func (v *validator) step(n int, step plan.Step) {
	for _, problem := range step.Problems {
		v.add(n, CodeMalformedStep, "%s", problem)
	}
	if step.Malformed {
		return
	}

	c, ok := v.catalog.Lookup(step.Function)
	if !ok {
		switch {
		case step.Function != "":
			d := v.add(n, CodeUnknownFunction, "Function '%s' does not exist.", step.Function)
			d.Suggestion = v.suggest(step.Function, v.capabilityNames())
		case len(step.Problems) == 0:
			v.add(n, CodeUnknownFunction, "Missing function name.")
		}
		// An unknown function still binds its variable so later references
		// are not reported twice.
		if step.HasAssign() {
			v.assign(n, step, "", false)
		}
		return
	}

	for _, arg := range step.Args {
		if _, known := c.Param(arg.Name); !known {
			d := v.add(n, CodeUnknownParameter, "Unknown parameter '%s' for function '%s'", arg.Name, c.Name)
			d.Suggestion = v.suggest(arg.Name, c.ParamNames())
		}
	}
	for _, arg := range step.Args {
		if p, known := c.Param(arg.Name); known && !p.Type.Declared() {
			v.add(n, CodeMissingTypeHint, "Parameter '%s' in '%s' lacks type hint.", p.Name, c.Name)
		}
	}
	for _, arg := range step.Args {
		p, known := c.Param(arg.Name)
		if !known || !p.Type.Declared() {
			continue
		}
		if !p.Type.Accepts(arg.Value) {
			v.add(n, CodeTypeMismatch, "Incorrect type for parameter '%s' in '%s': expected %s, got %s", p.Name, c.Name, p.Type, arg.Value.TypeName())
		}
	}
	for _, arg := range step.Args {
		if _, known := c.Param(arg.Name); known && !arg.Value.Finite() {
			v.add(n, CodeInvalidLiteral, "Argument '%s' for '%s' contains a non-finite number.", arg.Name, c.Name)
		}
	}
	if !c.Returns.Declared() {
		v.add(n, CodeMissingReturnType, "Function '%s' lacks return type hint.", c.Name)
	}
	for _, p := range c.Params {
		if p.Required() && !step.Args.Has(p.Name) {
			v.add(n, CodeMissingParameter, "Missing required parameter '%s' for function '%s'", p.Name, c.Name)
		}
	}
	for _, arg := range step.Args {
		for _, ref := range arg.Value.References() {
			if _, ok := v.assigned[ref]; !ok {
				v.add(n, CodeUndefinedVariable, "Variable '%s' used in argument '%s' before assignment.", ref, arg.Name)
			}
		}
	}
	if step.HasAssign() {
		if c.Returns.Category == capability.CategoryVoid {
			v.add(n, CodeVoidAssignment, "Function '%s' returns nothing and cannot be assigned to '%s'.", c.Name, step.Assign)
		}
		v.assign(n, step, c.Returns.GoType(), c.Returns.Declared() && c.Returns.Category != capability.CategoryVoid)
	}
}

// assign records step.Assign after checking that it is usable as a local
// variable in the generated program.
func (v *validator) assign(n int, step plan.Step, goType string, typed bool) {
	name := step.Assign
	if reason := v.invalidVariable(name); reason != "" {
		v.add(n, CodeInvalidVariable, "Variable '%s' %s.", name, reason)
	}
	if prev, seen := v.assigned[name]; seen && typed && prev != "" && prev != goType {
		v.add(n, CodeConflictingType, "Variable '%s' was bound to %s and cannot be rebound to %s.", name, prev, goType)
	}
	if typed || v.assigned[name] == "" {
		v.assigned[name] = goType
	}
}

func (v *validator) invalidVariable(name string) string {
	switch {
	case token.IsKeyword(name):
		return "is a reserved keyword"
	case !token.IsIdentifier(name):
		return "is not a valid identifier"
	case types.Universe.Lookup(name) != nil:
		return "shadows a predeclared identifier"
	}
	if _, reserved := capability.ReservedNames[name]; reserved {
		return "is reserved by the generated program"
	}
	if _, ok := v.catalog.Lookup(name); ok {
		return "collides with a capability name"
	}
	if base, ok := strings.CutSuffix(name, "Args"); ok {
		if _, ok := v.catalog.Lookup(base); ok {
			return "collides with a capability argument type"
		}
	}
	return ""
}

func (v *validator) capabilityNames() []string {
	if v.names == nil {
		v.names = v.catalog.Names()
	}
	return v.names
}

// suggest returns the closest candidate to name, or "".
func (v *validator) suggest(name string, candidates []string) string {
	if name == "" || len(candidates) == 0 {
		return ""
	}
	matches := fuzzy.Find(name, candidates)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
