// Package compile turns a validated plan into a standalone Go program.
//
// The output is a single package main file: one keyed argument struct and one
// function per distinct capability, in first-seen order, followed by a run
// function holding every call-site in plan order and a main that calls run.
// Compiling the same plan against the same catalog always yields the same
// bytes.
package compile

import (
	"errors"
	"fmt"
	"go/format"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kingrea/agx/internal/capability"
	"github.com/kingrea/agx/internal/plan"
)

// Header marks generated files.
const Header = "// Code generated by agx. DO NOT EDIT."

var (
	// ErrUnknownCapability means the plan names a capability the catalog
	// does not hold. Plans must pass validation before compilation.
	ErrUnknownCapability = errors.New("compile: unknown capability")
	// ErrCompile means the generated text is not well-formed Go.
	ErrCompile = errors.New("compile: generated source is not valid Go")
)

// Plan compiles p into Go source. Behaviour for plans that did not pass
// validation is best-effort.
func Plan(p plan.Plan, catalog capability.Catalog) (string, error) {
	caps := make([]capability.Capability, 0)
	for _, name := range p.Functions() {
		c, ok := catalog.Lookup(name)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownCapability, name)
		}
		caps = append(caps, c)
	}

	e := &emitter{
		declared: map[string]bool{},
		read:     map[string]bool{},
	}
	var calls []string
	for _, step := range p {
		if step.Malformed {
			continue
		}
		c, _ := catalog.Lookup(step.Function)
		stmt, err := e.callSite(step, c)
		if err != nil {
			return "", err
		}
		calls = append(calls, stmt)
	}

	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\n\npackage main\n")
	writeImports(&b, imports(caps, e.usesFmt))
	for _, c := range caps {
		writeDefinition(&b, c)
	}
	b.WriteString("\nfunc run() {\n")
	for _, stmt := range calls {
		b.WriteString(stmt)
		b.WriteByte('\n')
	}
	for _, name := range e.order {
		if !e.read[name] {
			fmt.Fprintf(&b, "_ = %s\n", name)
		}
	}
	b.WriteString("}\n\nfunc main() {\nrun()\n}\n")

	src, err := format.Source([]byte(b.String()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompile, err)
	}
	return string(src), nil
}

func imports(caps []capability.Capability, usesFmt bool) []string {
	set := map[string]struct{}{}
	if usesFmt {
		set["fmt"] = struct{}{}
	}
	for _, c := range caps {
		for _, imp := range c.Imports {
			set[strings.TrimSpace(imp)] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for imp := range set {
		out = append(out, imp)
	}
	sort.Strings(out)
	return out
}

func writeImports(b *strings.Builder, paths []string) {
	if len(paths) == 0 {
		return
	}
	b.WriteString("\nimport (\n")
	for _, path := range paths {
		b.WriteString(strconv.Quote(path))
		b.WriteByte('\n')
	}
	b.WriteString(")\n")
}

func writeDefinition(b *strings.Builder, c capability.Capability) {
	if c.Description != "" {
		fmt.Fprintf(b, "\n// %s: %s\n", c.Name, firstLine(c.Description))
	} else {
		b.WriteByte('\n')
	}
	fmt.Fprintf(b, "type %s struct {\n", c.ArgsTypeName())
	for _, p := range c.Params {
		fmt.Fprintf(b, "%s %s\n", p.Name, p.Type.GoType())
	}
	b.WriteString("}\n\n")
	fmt.Fprintf(b, "func %s(args %s)", c.Name, c.ArgsTypeName())
	if ret := c.Returns.GoType(); ret != "" {
		b.WriteString(" " + ret)
	}
	b.WriteString(" {\n")
	b.WriteString(c.Body)
	b.WriteString("\n}\n")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

// emitter tracks variable state across call-sites.
type emitter struct {
	declared map[string]bool
	read     map[string]bool
	order    []string
	usesFmt  bool
}

func (e *emitter) callSite(step plan.Step, c capability.Capability) (string, error) {
	fields := make([]string, 0, len(c.Params))
	for _, arg := range step.Args {
		if _, known := c.Param(arg.Name); !known {
			continue
		}
		expr, err := e.value(arg.Value)
		if err != nil {
			return "", fmt.Errorf("%w: %s.%s: %v", ErrCompile, c.Name, arg.Name, err)
		}
		fields = append(fields, arg.Name+": "+expr)
	}
	for _, p := range c.Params {
		if p.Required() || step.Args.Has(p.Name) {
			continue
		}
		expr, err := e.value(*p.Default)
		if err != nil {
			return "", fmt.Errorf("%w: %s.%s default: %v", ErrCompile, c.Name, p.Name, err)
		}
		fields = append(fields, p.Name+": "+expr)
	}
	call := fmt.Sprintf("%s(%s{%s})", c.Name, c.ArgsTypeName(), strings.Join(fields, ", "))
	if !step.HasAssign() {
		return call, nil
	}
	if e.declared[step.Assign] {
		return step.Assign + " = " + call, nil
	}
	e.declared[step.Assign] = true
	e.order = append(e.order, step.Assign)
	return step.Assign + " := " + call, nil
}

func (e *emitter) value(v plan.Value) (string, error) {
	switch v.Kind {
	case plan.KindString:
		return strconv.Quote(v.Str), nil
	case plan.KindBool:
		return strconv.FormatBool(v.Bool), nil
	case plan.KindInt:
		return v.Number, nil
	case plan.KindFloat:
		return floatLiteral(v.Float)
	case plan.KindTemplate:
		return e.template(v), nil
	case plan.KindComposite:
		return literal(v.Raw)
	default:
		return "", fmt.Errorf("unsupported value kind %s", v.Kind)
	}
}

// template renders an interpolating expression. A lone reference becomes
// fmt.Sprint(v); anything else becomes fmt.Sprintf with one %v per reference.
func (e *emitter) template(v plan.Value) string {
	e.usesFmt = true
	for _, ref := range v.References() {
		e.read[ref] = true
	}
	if v.IsSingleReference() {
		return "fmt.Sprint(" + v.Segments[0].Ref + ")"
	}
	var pattern strings.Builder
	var refs []string
	for _, seg := range v.Segments {
		if seg.IsRef {
			pattern.WriteString("%v")
			refs = append(refs, seg.Ref)
			continue
		}
		pattern.WriteString(strings.ReplaceAll(seg.Text, "%", "%%"))
	}
	args := append([]string{strconv.Quote(pattern.String())}, refs...)
	return "fmt.Sprintf(" + strings.Join(args, ", ") + ")"
}

func floatLiteral(f float64) (string, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("non-finite number %v", f)
	}
	return plan.Float(f).Number, nil
}

// literal renders a decoded composite value. Object keys are sorted.
func literal(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "nil", nil
	case string:
		return strconv.Quote(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return floatLiteral(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			text, err := literal(item)
			if err != nil {
				return "", err
			}
			items = append(items, text)
		}
		return "[]any{" + strings.Join(items, ", ") + "}", nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, 0, len(keys))
		for _, k := range keys {
			text, err := literal(v[k])
			if err != nil {
				return "", err
			}
			items = append(items, strconv.Quote(k)+": "+text)
		}
		return "map[string]any{" + strings.Join(items, ", ") + "}", nil
	default:
		return "", fmt.Errorf("unsupported literal %T", raw)
	}
}
