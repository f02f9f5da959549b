package capability

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/agx/internal/plan"
)

// Document is the on-disk schema of a capability definition file.
type Document struct {
	Capabilities []Definition `yaml:"capabilities"`
}

// Definition describes one capability in YAML.
type Definition struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Params      []ParamDefinition `yaml:"params,omitempty"`
	Returns     string            `yaml:"returns,omitempty"`
	Imports     []string          `yaml:"imports,omitempty"`
	Body        string            `yaml:"body"`
}

// ParamDefinition describes one parameter. A present default (even null)
// makes the parameter optional.
type ParamDefinition struct {
	Name    string     `yaml:"name"`
	Type    string     `yaml:"type,omitempty"`
	Default *yaml.Node `yaml:"default,omitempty"`
}

// DefinitionFile pairs parsed capabilities with their on-disk source.
type DefinitionFile struct {
	Capabilities []Capability
	Path         string
}

// Capability converts the definition into a validated descriptor.
func (def Definition) Capability() (Capability, error) {
	c := Capability{
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Returns:     ParseType(def.Returns),
		Body:        strings.TrimRight(def.Body, "\n"),
	}
	for _, imp := range def.Imports {
		c.Imports = append(c.Imports, strings.TrimSpace(imp))
	}
	for idx, p := range def.Params {
		param := Param{
			Name: strings.TrimSpace(p.Name),
			Type: ParseType(p.Type),
		}
		if p.Default != nil {
			value, err := defaultValue(p.Default)
			if err != nil {
				return Capability{}, fmt.Errorf("capability %s: params[%d]: %w", c.Name, idx, err)
			}
			param.Default = &value
		}
		c.Params = append(c.Params, param)
	}
	if err := c.Validate(); err != nil {
		return Capability{}, err
	}
	return c, nil
}

// defaultValue converts a YAML default into a literal. Strings are kept
// verbatim: braces in a default never denote references.
func defaultValue(n *yaml.Node) (plan.Value, error) {
	if n.Kind == yaml.ScalarNode {
		switch n.ShortTag() {
		case "!!str":
			return plan.Value{Kind: plan.KindString, Str: n.Value}, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return plan.Value{}, fmt.Errorf("default: %w", err)
			}
			return plan.Bool(b), nil
		case "!!int":
			var i int64
			if err := n.Decode(&i); err != nil {
				return plan.Value{}, fmt.Errorf("default: %w", err)
			}
			return plan.Int(i), nil
		case "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return plan.Value{}, fmt.Errorf("default: %w", err)
			}
			return plan.Float(f), nil
		}
	}
	var raw any
	if err := n.Decode(&raw); err != nil {
		return plan.Value{}, fmt.Errorf("default: %w", err)
	}
	return plan.Composite(raw), nil
}

// ParseDefinitionYAML decodes and validates a capability definition payload.
func ParseDefinitionYAML(data []byte) ([]Capability, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("capability: definition payload is empty")
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("capability: decode definition: %w", err)
	}
	if len(doc.Capabilities) == 0 {
		return nil, fmt.Errorf("capability: definition declares no capabilities")
	}
	out := make([]Capability, 0, len(doc.Capabilities))
	for idx, def := range doc.Capabilities {
		c, err := def.Capability()
		if err != nil {
			return nil, fmt.Errorf("capabilities[%d]: %w", idx, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// LoadDefinitionFile reads a YAML file from disk and returns its capabilities.
func LoadDefinitionFile(path string) (DefinitionFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("capability: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return DefinitionFile{}, fmt.Errorf("capability: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("capability: read %s: %w", path, err)
	}
	caps, err := ParseDefinitionYAML(data)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("capability: %s: %w", path, err)
	}
	return DefinitionFile{Capabilities: caps, Path: filepath.Clean(path)}, nil
}

// LoadDefinitionDir scans a directory for *.yaml definitions. Missing
// directories are treated as "no definitions".
func LoadDefinitionDir(dir string) ([]DefinitionFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("capability: read %s: %w", trimmed, err)
	}
	var files []DefinitionFile
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		file, err := LoadDefinitionFile(filepath.Join(trimmed, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
