package capability

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kingrea/agx/internal/plan"
)

func testCapability(name string) Capability {
	def := plan.String("main.tf")
	return Capability{
		Name: name,
		Params: []Param{
			{Name: "content", Type: ParseType("string")},
			{Name: "filename", Type: ParseType("string"), Default: &def},
		},
		Returns: ParseType("string"),
		Body:    "return args.filename",
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		expr     string
		category Category
		goType   string
	}{
		{expr: "", category: CategoryUndeclared, goType: "any"},
		{expr: "none", category: CategoryVoid, goType: ""},
		{expr: "string", category: CategorySimple, goType: "string"},
		{expr: " int64 ", category: CategorySimple, goType: "int64"},
		{expr: "interface {}", category: CategoryAny, goType: "any"},
		{expr: "[]string", category: CategoryUnsupported, goType: "[]string"},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			typ := ParseType(tc.expr)
			if typ.Category != tc.category {
				t.Fatalf("category = %s, want %s", typ.Category, tc.category)
			}
			if typ.GoType() != tc.goType {
				t.Fatalf("GoType() = %q, want %q", typ.GoType(), tc.goType)
			}
		})
	}
}

func TestTypeAccepts(t *testing.T) {
	tests := []struct {
		typ   string
		value plan.Value
		want  bool
	}{
		{typ: "string", value: plan.String("x"), want: true},
		{typ: "string", value: plan.String("{x}"), want: true},
		{typ: "string", value: plan.Int(1), want: false},
		{typ: "bool", value: plan.Bool(true), want: true},
		{typ: "bool", value: plan.String("true"), want: false},
		{typ: "int", value: plan.Float(1.5), want: false},
		{typ: "float64", value: plan.Int(2), want: true},
		{typ: "any", value: plan.Composite(nil), want: true},
		{typ: "[]string", value: plan.Int(3), want: true},
	}
	for _, tc := range tests {
		if got := ParseType(tc.typ).Accepts(tc.value); got != tc.want {
			t.Fatalf("%s.Accepts(%s) = %v, want %v", tc.typ, tc.value.TypeName(), got, tc.want)
		}
	}
}

func TestCapabilityValidate(t *testing.T) {
	if err := testCapability("save").Validate(); err != nil {
		t.Fatalf("expected valid capability: %v", err)
	}
	tests := map[string]func(c *Capability){
		"empty name":     func(c *Capability) { c.Name = "" },
		"bad identifier": func(c *Capability) { c.Name = "save-file" },
		"reserved":       func(c *Capability) { c.Name = "run" },
		"predeclared":    func(c *Capability) { c.Name = "string" },
		"builtin func":   func(c *Capability) { c.Name = "len" },
		"non-finite default": func(c *Capability) {
			v := plan.Float(math.Inf(1))
			c.Params = append(c.Params, Param{Name: "ratio", Type: ParseType("float64"), Default: &v})
		},
		"duplicate param": func(c *Capability) {
			c.Params = append(c.Params, Param{Name: "content", Type: ParseType("string")})
		},
		"void param": func(c *Capability) { c.Params[0].Type = ParseType("none") },
		"default mismatch": func(c *Capability) {
			v := plan.Int(3)
			c.Params[1].Default = &v
		},
		"bad type":   func(c *Capability) { c.Returns = ParseType("map[") },
		"bad body":   func(c *Capability) { c.Body = "return (" },
		"bad import": func(c *Capability) { c.Imports = []string{" "} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := testCapability("save")
			c.Params = append([]Param(nil), c.Params...)
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSignature(t *testing.T) {
	got := testCapability("save").Signature()
	want := `save(content string, filename string = "main.tf") string`
	if got != want {
		t.Fatalf("Signature() = %q, want %q", got, want)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(testCapability("b"))
	reg.MustRegister(testCapability("a"))
	if err := reg.Register(testCapability("a")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if got := strings.Join(reg.Names(), ","); got != "a,b" {
		t.Fatalf("unexpected names: %s", got)
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Fatalf("lookup of unknown capability should fail")
	}
	c, ok := reg.Lookup("a")
	if !ok || c.Name != "a" {
		t.Fatalf("unexpected lookup result: %+v", c)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 capabilities, got %d", reg.Len())
	}
}

func TestRegistryRejectsArgsTypeCollision(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(testCapability("save"))
	if err := reg.Register(testCapability("saveArgs")); err == nil {
		t.Fatalf("expected collision error")
	}
}

func TestMustRegisterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewRegistry().MustRegister(Capability{})
}

func TestRegistryRejectsImportCollision(t *testing.T) {
	reg := NewRegistry()
	c := testCapability("shout")
	c.Imports = []string{"strings"}
	reg.MustRegister(c)
	if err := reg.Register(testCapability("strings")); err == nil {
		t.Fatalf("expected import collision error")
	}
}
