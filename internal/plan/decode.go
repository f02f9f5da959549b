package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyPlan is returned when a plan payload holds no data at all.
var ErrEmptyPlan = errors.New("plan: payload is empty")

type nodeKind int

const (
	nodeScalar nodeKind = iota
	nodeSeq
	nodeMap
)

// node is an order-preserving document tree shared by the JSON and YAML
// decoders. Scalars hold string, bool, int64, float64 or nil.
type node struct {
	kind   nodeKind
	scalar any
	keys   []string
	items  []*node
}

// ParseJSON decodes a plan from JSON, preserving argument order.
func ParseJSON(data []byte) (Plan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyPlan
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := readJSON(dec)
	if err != nil {
		return nil, fmt.Errorf("plan: decode json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("plan: decode json: unexpected data after plan")
	}
	return build(root)
}

// ParseYAML decodes a plan from YAML, preserving argument order.
func ParseYAML(data []byte) (Plan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyPlan
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("plan: decode yaml: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	tree, err := fromYAML(root)
	if err != nil {
		return nil, fmt.Errorf("plan: decode yaml: %w", err)
	}
	return build(tree)
}

// Load reads a plan file, choosing the decoder by extension. Files without a
// YAML extension are decoded as JSON.
func Load(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: read %s: %w", path, err)
	}
	var p Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		p, err = ParseYAML(data)
	default:
		p, err = ParseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("plan: %s: %w", path, err)
	}
	return p, nil
}

func readJSON(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			n := &node{kind: nodeSeq}
			for dec.More() {
				child, err := readJSON(dec)
				if err != nil {
					return nil, err
				}
				n.items = append(n.items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '{':
			n := &node{kind: nodeMap}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key %v is not a string", keyTok)
				}
				child, err := readJSON(dec)
				if err != nil {
					return nil, err
				}
				n.keys = append(n.keys, key)
				n.items = append(n.items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case json.Number:
		v, err := Number(t.String())
		if err != nil {
			return nil, fmt.Errorf("number %s: %w", t, err)
		}
		return &node{kind: nodeScalar, scalar: v.goValue()}, nil
	default:
		// string, bool or nil
		return &node{kind: nodeScalar, scalar: t}, nil
	}
}

func fromYAML(n *yaml.Node) (*node, error) {
	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("line %d: dangling alias", n.Line)
		}
		return fromYAML(n.Alias)
	case yaml.SequenceNode:
		out := &node{kind: nodeSeq}
		for _, child := range n.Content {
			item, err := fromYAML(child)
			if err != nil {
				return nil, err
			}
			out.items = append(out.items, item)
		}
		return out, nil
	case yaml.MappingNode:
		out := &node{kind: nodeMap}
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valueNode := n.Content[i], n.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", keyNode.Line)
			}
			item, err := fromYAML(valueNode)
			if err != nil {
				return nil, err
			}
			out.keys = append(out.keys, keyNode.Value)
			out.items = append(out.items, item)
		}
		return out, nil
	case yaml.ScalarNode:
		return &node{kind: nodeScalar, scalar: yamlScalar(n)}, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node", n.Line)
	}
}

func yamlScalar(n *yaml.Node) any {
	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return b
		}
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return i
		}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			return f
		}
	}
	return n.Value
}

func build(root *node) (Plan, error) {
	if root.kind != nodeSeq {
		return nil, fmt.Errorf("plan: top level must be a list of steps")
	}
	p := make(Plan, 0, len(root.items))
	for _, item := range root.items {
		p = append(p, buildStep(item))
	}
	return p, nil
}

func buildStep(n *node) Step {
	if n.kind != nodeMap {
		return Step{Malformed: true, Problems: []string{"step is not an object"}}
	}
	var step Step
	for i, key := range n.keys {
		field := n.items[i]
		switch key {
		case "function":
			if field.kind == nodeScalar && field.scalar == nil {
				continue
			}
			name, ok := field.scalar.(string)
			if field.kind != nodeScalar || !ok {
				step.Problems = append(step.Problems, "field 'function' must be a string")
				continue
			}
			step.Function = name
		case "args":
			if field.kind == nodeScalar && field.scalar == nil {
				continue
			}
			if field.kind != nodeMap {
				step.Problems = append(step.Problems, "field 'args' must be an object")
				continue
			}
			for j, name := range field.keys {
				step.Args = step.Args.set(name, field.items[j].value())
			}
		case "assign":
			if field.kind == nodeScalar && field.scalar == nil {
				continue
			}
			name, ok := field.scalar.(string)
			if field.kind != nodeScalar || !ok {
				step.Problems = append(step.Problems, "field 'assign' must be a string")
				continue
			}
			step.Assign = name
		}
	}
	return step
}

func (n *node) value() Value {
	if n.kind != nodeScalar {
		return Composite(n.raw())
	}
	switch v := n.scalar.(type) {
	case string:
		return String(v)
	case bool:
		return Bool(v)
	case int64:
		return Int(v)
	case float64:
		return Float(v)
	default:
		return Composite(nil)
	}
}

func (n *node) raw() any {
	switch n.kind {
	case nodeSeq:
		out := make([]any, 0, len(n.items))
		for _, item := range n.items {
			out = append(out, item.raw())
		}
		return out
	case nodeMap:
		out := make(map[string]any, len(n.keys))
		for i, key := range n.keys {
			out[key] = n.items[i].raw()
		}
		return out
	default:
		return n.scalar
	}
}

func (v Value) goValue() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindBool:
		return v.Bool
	case KindString, KindTemplate:
		return v.Str
	default:
		return v.Raw
	}
}
