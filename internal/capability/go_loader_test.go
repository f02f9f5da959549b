package capability

import (
	"os"
	"path/filepath"
	"testing"
)

const goCapabilitySource = `package main

func Capabilities() ([]map[string]any, error) {
	return []map[string]any{
		{
			"name":    "shout",
			"returns": "string",
			"imports": []string{"strings"},
			"params": []map[string]any{
				{"name": "text", "type": "string"},
			},
			"body": "return strings.ToUpper(args.text)",
		},
	}, nil
}`

func TestLoadGoDefinitionDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "shout.go"), []byte(goCapabilitySource), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	files, err := LoadGoDefinitionDir(dir)
	if err != nil {
		t.Fatalf("load go definitions: %v", err)
	}
	if len(files) != 1 || len(files[0].Capabilities) != 1 {
		t.Fatalf("unexpected files: %+v", files)
	}
	c := files[0].Capabilities[0]
	if c.Name != "shout" || c.Returns.Name != "string" {
		t.Fatalf("unexpected capability: %+v", c)
	}
	if p, ok := c.Param("text"); !ok || !p.Required() {
		t.Fatalf("expected required text param: %+v", c.Params)
	}
}

func TestLoadGoDefinitionDirMissingFunc(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadGoDefinitionDir(dir); err == nil {
		t.Fatalf("expected error for missing Capabilities function")
	}
}
