// Package plan defines the execution plan IR: an ordered list of steps, each
// invoking one capability with named arguments and an optional result binding.
package plan

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Plan is an ordered sequence of steps. Order defines both execution order and
// variable visibility.
type Plan []Step

// Step invokes one capability.
type Step struct {
	Function string
	Args     Args
	Assign   string
	// Problems records shape anomalies found while decoding the step. They are
	// reported as diagnostics rather than aborting the decode.
	Problems []string
	// Malformed is set when the step was not an object at all.
	Malformed bool
}

// HasAssign reports whether the step binds its result to a variable.
func (s Step) HasAssign() bool {
	return s.Assign != ""
}

// Arg is one named argument.
type Arg struct {
	Name  string
	Value Value
}

// Args preserves argument insertion order.
type Args []Arg

// Get returns the value for name.
func (a Args) Get(name string) (Value, bool) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether name was provided.
func (a Args) Has(name string) bool {
	_, ok := a.Get(name)
	return ok
}

// Names returns argument names in insertion order.
func (a Args) Names() []string {
	names := make([]string, 0, len(a))
	for _, arg := range a {
		names = append(names, arg.Name)
	}
	return names
}

// set replaces an existing argument in place or appends a new one, so a
// duplicated key keeps its first position and its last value.
func (a Args) set(name string, value Value) Args {
	for i := range a {
		if a[i].Name == name {
			a[i].Value = value
			return a
		}
	}
	return append(a, Arg{Name: name, Value: value})
}

// Functions returns distinct function names in first-seen order.
func (p Plan) Functions() []string {
	seen := make(map[string]struct{}, len(p))
	var out []string
	for _, step := range p {
		if step.Malformed {
			continue
		}
		if _, ok := seen[step.Function]; ok {
			continue
		}
		seen[step.Function] = struct{}{}
		out = append(out, step.Function)
	}
	return out
}

// Number parses a numeric literal, keeping integers as KindInt when they fit.
func Number(text string) (Value, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.ContainsAny(trimmed, ".eE") {
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return Value{Kind: KindInt, Int: n, Number: trimmed}, nil
		}
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil && !(errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0)) {
		return Value{}, err
	}
	// Out-of-range literals decode as infinities so validation can report
	// them against their step.
	return Float(f), nil
}

// Int builds an integer value.
func Int(n int64) Value {
	return Value{Kind: KindInt, Int: n, Number: strconv.FormatInt(n, 10)}
}

// Float builds a floating point value whose literal always reads as a float.
func Float(f float64) Value {
	text := strconv.FormatFloat(f, 'g', -1, 64)
	if !math.IsInf(f, 0) && !math.IsNaN(f) && !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return Value{Kind: KindFloat, Float: f, Number: text}
}
