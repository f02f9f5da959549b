package capability

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

const goDefinitionFuncName = "Capabilities"

// LoadGoDefinitionDir evaluates every .go file in dir and collects the
// capabilities declared via Capabilities().
func LoadGoDefinitionDir(dir string) ([]DefinitionFile, error) {
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
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".go" {
			continue
		}
		file, err := LoadGoDefinitionFile(filepath.Join(trimmed, entry.Name()))
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

// LoadGoDefinitionFile interprets one Go source file. Each map returned by
// Capabilities() uses the same keys as a YAML definition.
func LoadGoDefinitionFile(path string) (DefinitionFile, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("capability: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return DefinitionFile{}, fmt.Errorf("capability: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return DefinitionFile{}, fmt.Errorf("capability: interpret %s: %w", path, err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return DefinitionFile{}, fmt.Errorf("capability: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(goDefinitionFuncName)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("capability: %s must define %s() ([]map[string]any, error): %w", path, goDefinitionFuncName, err)
	}
	defs, err := invokeDefinitionFunc(fnValue)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("capability: %s: %w", path, err)
	}
	payload, err := yaml.Marshal(map[string]any{"capabilities": defs})
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("capability: %s: %w", path, err)
	}
	caps, err := ParseDefinitionYAML(payload)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("capability: %s: %w", path, err)
	}
	return DefinitionFile{Capabilities: caps, Path: filepath.Clean(path)}, nil
}

func invokeDefinitionFunc(fn reflect.Value) ([]map[string]any, error) {
	if !fn.IsValid() {
		return nil, fmt.Errorf("missing %s function", goDefinitionFuncName)
	}
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goDefinitionFuncName)
	}
	if fn.Type().NumIn() != 0 {
		return nil, fmt.Errorf("%s must take no arguments", goDefinitionFuncName)
	}
	results := fn.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", goDefinitionFuncName)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", goDefinitionFuncName)
	}
	defsVal := results[0]
	if defs, ok := defsVal.Interface().([]map[string]any); ok {
		return defs, nil
	}
	if defsVal.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", goDefinitionFuncName)
	}
	out := make([]map[string]any, defsVal.Len())
	for i := 0; i < defsVal.Len(); i++ {
		m, ok := defsVal.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", goDefinitionFuncName, i)
		}
		out[i] = m
	}
	return out, nil
}
