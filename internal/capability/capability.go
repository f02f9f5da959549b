// Package capability describes the callable actions a plan may invoke. A
// Capability is an explicit, statically declared descriptor: parameter names,
// declared types, default presence, a return type and the Go source of its
// body, which the compiler copies into generated programs.
package capability

import (
	"fmt"
	"go/parser"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"github.com/kingrea/agx/internal/plan"
)

// ReservedNames are identifiers the generated program defines itself.
var ReservedNames = map[string]struct{}{
	"_":    {},
	"fmt":  {},
	"init": {},
	"main": {},
	"run":  {},
}

// Param declares one capability parameter.
type Param struct {
	Name string
	Type Type
	// Default is the value used when the argument is omitted. A nil Default
	// makes the parameter required.
	Default *plan.Value
}

// Required reports whether the parameter must be supplied.
func (p Param) Required() bool {
	return p.Default == nil
}

// Capability is one registry entry.
type Capability struct {
	Name        string
	Description string
	Params      []Param
	Returns     Type
	// Imports lists the packages Body depends on.
	Imports []string
	// Body is the Go statement list of the function. Parameters are reached
	// through the args struct, e.g. args.message.
	Body string
}

// Param returns the named parameter.
func (c Capability) Param(name string) (Param, bool) {
	for _, p := range c.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// ParamNames lists parameter names in declaration order.
func (c Capability) ParamNames() []string {
	names := make([]string, 0, len(c.Params))
	for _, p := range c.Params {
		names = append(names, p.Name)
	}
	return names
}

// ArgsTypeName is the name of the generated keyed-argument struct.
func (c Capability) ArgsTypeName() string {
	return c.Name + "Args"
}

// Signature renders a short human-readable signature.
func (c Capability) Signature() string {
	parts := make([]string, 0, len(c.Params))
	for _, p := range c.Params {
		part := p.Name + " " + p.Type.String()
		if !p.Required() {
			part += " = " + defaultText(*p.Default)
		}
		parts = append(parts, part)
	}
	return fmt.Sprintf("%s(%s) %s", c.Name, strings.Join(parts, ", "), c.Returns)
}

func defaultText(v plan.Value) string {
	switch v.Kind {
	case plan.KindString:
		return strconv.Quote(v.Str)
	case plan.KindBool:
		return strconv.FormatBool(v.Bool)
	case plan.KindInt, plan.KindFloat:
		return v.Number
	default:
		return v.TypeName()
	}
}

// IsIdentifier reports whether name is usable as a Go identifier in the
// generated program.
func IsIdentifier(name string) bool {
	return token.IsIdentifier(name)
}

// Validate ensures the descriptor can be emitted into a well-formed program.
func (c Capability) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("capability: name is required")
	}
	if !IsIdentifier(c.Name) {
		return fmt.Errorf("capability: %q is not a valid identifier", c.Name)
	}
	if _, reserved := ReservedNames[c.Name]; reserved {
		return fmt.Errorf("capability: %q is reserved", c.Name)
	}
	if types.Universe.Lookup(c.Name) != nil {
		return fmt.Errorf("capability: %q shadows a predeclared identifier", c.Name)
	}
	seen := make(map[string]struct{}, len(c.Params))
	for idx, p := range c.Params {
		if !IsIdentifier(p.Name) {
			return fmt.Errorf("capability %s: params[%d]: %q is not a valid identifier", c.Name, idx, p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("capability %s: duplicate parameter %s", c.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Type.Category == CategoryVoid {
			return fmt.Errorf("capability %s: parameter %s cannot be %s", c.Name, p.Name, VoidName)
		}
		if err := p.Type.validate(); err != nil {
			return fmt.Errorf("capability %s: parameter %s: %w", c.Name, p.Name, err)
		}
		if p.Default != nil {
			if p.Default.Kind == plan.KindTemplate {
				return fmt.Errorf("capability %s: parameter %s: default must be a literal", c.Name, p.Name)
			}
			if !p.Default.Finite() {
				return fmt.Errorf("capability %s: parameter %s: default must be a finite number", c.Name, p.Name)
			}
			if !p.Type.Accepts(*p.Default) {
				return fmt.Errorf("capability %s: parameter %s: default %s does not match %s", c.Name, p.Name, p.Default.TypeName(), p.Type)
			}
		}
	}
	if err := c.Returns.validate(); err != nil {
		return fmt.Errorf("capability %s: returns: %w", c.Name, err)
	}
	if err := c.checkSource(); err != nil {
		return fmt.Errorf("capability %s: %w", c.Name, err)
	}
	return nil
}

// checkSource parses the imports and body inside a throwaway file so syntax
// errors surface at registration rather than in generated output.
func (c Capability) checkSource() error {
	var b strings.Builder
	b.WriteString("package capability\n")
	for _, imp := range c.Imports {
		path := strings.TrimSpace(imp)
		if path == "" {
			return fmt.Errorf("empty import path")
		}
		b.WriteString("import " + strconv.Quote(path) + "\n")
	}
	b.WriteString("func _() {\n")
	b.WriteString(c.Body)
	b.WriteString("\n}\n")
	if _, err := parser.ParseFile(token.NewFileSet(), c.Name+".go", b.String(), parser.SkipObjectResolution); err != nil {
		return fmt.Errorf("body does not parse: %w", err)
	}
	return nil
}
