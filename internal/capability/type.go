package capability

import (
	"fmt"
	"go/parser"
	"strings"

	"github.com/kingrea/agx/internal/plan"
)

// Category is the closed set of declared-type categories the validator knows.
type Category int

const (
	// CategoryUndeclared marks a missing annotation.
	CategoryUndeclared Category = iota
	// CategoryVoid is a return type of "none": the capability yields nothing.
	CategoryVoid
	// CategorySimple covers string, bool, int, int64 and float64; values are
	// checked against them directly.
	CategorySimple
	// CategoryAny accepts every value.
	CategoryAny
	// CategoryUnsupported is any other Go type expression. Values pass through
	// unchecked.
	CategoryUnsupported
)

func (c Category) String() string {
	switch c {
	case CategoryUndeclared:
		return "undeclared"
	case CategoryVoid:
		return "void"
	case CategorySimple:
		return "simple"
	case CategoryAny:
		return "any"
	case CategoryUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// VoidName is the declaration used for capabilities that return nothing.
const VoidName = "none"

var simpleTypes = map[string]struct{}{
	"string":  {},
	"bool":    {},
	"int":     {},
	"int64":   {},
	"float64": {},
}

// Type is a declared parameter or return type.
type Type struct {
	Category Category
	// Name is the Go type expression as declared.
	Name string
}

// ParseType classifies a declared type expression.
func ParseType(expr string) Type {
	name := strings.TrimSpace(expr)
	switch {
	case name == "":
		return Type{Category: CategoryUndeclared}
	case name == VoidName:
		return Type{Category: CategoryVoid, Name: name}
	case name == "any" || strings.ReplaceAll(name, " ", "") == "interface{}":
		return Type{Category: CategoryAny, Name: "any"}
	}
	if _, ok := simpleTypes[name]; ok {
		return Type{Category: CategorySimple, Name: name}
	}
	return Type{Category: CategoryUnsupported, Name: name}
}

// Declared reports whether the type carries an annotation.
func (t Type) Declared() bool {
	return t.Category != CategoryUndeclared
}

// Accepts reports whether v may be bound to a parameter of this type. Only
// simple types are checked; everything else passes through.
func (t Type) Accepts(v plan.Value) bool {
	if t.Category != CategorySimple {
		return true
	}
	switch t.Name {
	case "string":
		return v.IsStringLike()
	case "bool":
		return v.Kind == plan.KindBool
	case "int", "int64":
		return v.Kind == plan.KindInt
	case "float64":
		return v.Kind == plan.KindFloat || v.Kind == plan.KindInt
	default:
		return true
	}
}

// GoType renders the type for a struct field or result list. Undeclared types
// render as any and void renders as the empty string.
func (t Type) GoType() string {
	switch t.Category {
	case CategoryUndeclared:
		return "any"
	case CategoryVoid:
		return ""
	default:
		return t.Name
	}
}

func (t Type) String() string {
	if t.Category == CategoryUndeclared {
		return "<undeclared>"
	}
	return t.Name
}

func (t Type) validate() error {
	if t.Category != CategoryUnsupported {
		return nil
	}
	if _, err := parser.ParseExpr(t.Name); err != nil {
		return fmt.Errorf("type %q is not a Go type expression: %w", t.Name, err)
	}
	return nil
}
