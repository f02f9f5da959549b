package plan

import (
	"math"
	"regexp"
)

// Kind discriminates the argument value union.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindFloat
	// KindTemplate is a string containing at least one {identifier} reference.
	KindTemplate
	// KindComposite carries null, list and object values verbatim.
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTemplate:
		return "template"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Segment is one piece of a template: literal text or a variable reference.
type Segment struct {
	Text string
	Ref  string
	// IsRef distinguishes a reference from literal text; Ref may be empty for "{}".
	IsRef bool
}

// Value is a parsed argument value. Exactly the fields matching Kind are set.
type Value struct {
	Kind     Kind
	Str      string
	Bool     bool
	Int      int64
	Float    float64
	Number   string
	Segments []Segment
	Raw      any
}

var referencePattern = regexp.MustCompile(`\{[^{}]*\}`)

// String builds a string value, splitting it into a template when it holds
// one or more {identifier} references.
func String(s string) Value {
	matches := referencePattern.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return Value{Kind: KindString, Str: s}
	}
	segments := make([]Segment, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m[0] > last {
			segments = append(segments, Segment{Text: s[last:m[0]]})
		}
		segments = append(segments, Segment{Ref: s[m[0]+1 : m[1]-1], IsRef: true})
		last = m[1]
	}
	if last < len(s) {
		segments = append(segments, Segment{Text: s[last:]})
	}
	return Value{Kind: KindTemplate, Str: s, Segments: segments}
}

// Bool builds a boolean value.
func Bool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// Composite wraps a null, list or object value.
func Composite(raw any) Value {
	return Value{Kind: KindComposite, Raw: raw}
}

// References returns the variable names referenced by the value in order of
// appearance. Repeated references are reported each time they occur.
func (v Value) References() []string {
	if v.Kind != KindTemplate {
		return nil
	}
	var refs []string
	for _, seg := range v.Segments {
		if seg.IsRef {
			refs = append(refs, seg.Ref)
		}
	}
	return refs
}

// Finite reports whether every number in v, including those nested in a
// composite, is neither infinite nor NaN.
func (v Value) Finite() bool {
	switch v.Kind {
	case KindFloat:
		return finite(v.Float)
	case KindComposite:
		return finiteRaw(v.Raw)
	default:
		return true
	}
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func finiteRaw(raw any) bool {
	switch v := raw.(type) {
	case float64:
		return finite(v)
	case []any:
		for _, item := range v {
			if !finiteRaw(item) {
				return false
			}
		}
	case map[string]any:
		for _, item := range v {
			if !finiteRaw(item) {
				return false
			}
		}
	}
	return true
}

// IsStringLike reports whether the value is a string at run time.
func (v Value) IsStringLike() bool {
	return v.Kind == KindString || v.Kind == KindTemplate
}

// Text returns the original string content of string-like values.
func (v Value) Text() string {
	return v.Str
}

// IsSingleReference reports whether the template is exactly one reference with
// no surrounding text.
func (v Value) IsSingleReference() bool {
	return v.Kind == KindTemplate && len(v.Segments) == 1 && v.Segments[0].IsRef
}

// TypeName is the human-readable name of the run-time type carried by v.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindTemplate:
		return "string"
	case KindComposite:
		switch v.Raw.(type) {
		case nil:
			return "null"
		case []any:
			return "list"
		default:
			return "object"
		}
	default:
		return v.Kind.String()
	}
}
