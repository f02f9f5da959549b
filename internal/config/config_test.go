package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	cfg, err := Load(projectDir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", cfg.Project.Version)
	}
	if cfg.Project.Registry.Builtin != "devops" {
		t.Fatalf("expected devops registry, got %q", cfg.Project.Registry.Builtin)
	}
	if !cfg.Project.Verify {
		t.Fatalf("verification should default to on")
	}
	if cfg.Project.Planner.Timeout != defaultTimeout {
		t.Fatalf("unexpected timeout: %s", cfg.Project.Planner.Timeout)
	}
	want := filepath.Join(projectDir, AgxDir, "capabilities")
	if len(cfg.Project.Registry.Dirs) != 1 || cfg.Project.Registry.Dirs[0] != want {
		t.Fatalf("unexpected capability dirs: %v", cfg.Project.Registry.Dirs)
	}
	if cfg.PlannerEnabled() {
		t.Fatalf("planner should be disabled by default")
	}
}

func TestLoadParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	agxDir := filepath.Join(projectDir, AgxDir)
	if err := os.MkdirAll(agxDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
registry:
  builtin: none
  dirs: [defs]
  go_dirs: [/opt/agx/go]
planner:
  command: [llm, -m, gpt-4.1-nano]
  prompt_template: prompts/devops.txt
  timeout: 30s
verify: false
log:
  level: DEBUG
  file: logs/agx.log
`)
	if err := os.WriteFile(filepath.Join(agxDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(projectDir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	p := cfg.Project
	if p.Registry.Builtin != "none" || p.Registry.Dirs[0] != filepath.Join(projectDir, "defs") {
		t.Fatalf("unexpected registry config: %+v", p.Registry)
	}
	if p.Registry.GoDirs[0] != "/opt/agx/go" {
		t.Fatalf("absolute paths must be kept: %v", p.Registry.GoDirs)
	}
	if strings.Join(p.Planner.Command, " ") != "llm -m gpt-4.1-nano" {
		t.Fatalf("unexpected planner command: %v", p.Planner.Command)
	}
	if p.Planner.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout: %s", p.Planner.Timeout)
	}
	if !strings.HasPrefix(p.Planner.PromptTemplate, projectDir) {
		t.Fatalf("prompt template should be resolved: %s", p.Planner.PromptTemplate)
	}
	if p.Verify {
		t.Fatalf("verify should be off")
	}
	if p.Log.Level != "debug" || cfg.LogFile() != filepath.Join(projectDir, "logs", "agx.log") {
		t.Fatalf("unexpected log config: %+v", p.Log)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := map[string]string{
		"bad registry": "registry:\n  builtin: k8s\n",
		"bad level":    "log:\n  level: loud\n",
		"bad timeout":  "planner:\n  timeout: -1s\n",
		"bad yaml":     "registry: [",
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			projectDir := t.TempDir()
			agxDir := filepath.Join(projectDir, AgxDir)
			if err := os.MkdirAll(agxDir, 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(agxDir, "config.yaml"), []byte(payload), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(projectDir); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	projectDir := t.TempDir()
	dotenv := "AGX_PLANNER_COMMAND=cat -\nAGX_LOG_LEVEL=warn\n"
	if err := os.WriteFile(filepath.Join(projectDir, ".env"), []byte(dotenv), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGX_VERIFY", "false")
	t.Setenv("AGX_PLANNER_TIMEOUT", "5s")
	// Registered so the values loaded from .env are removed after the test.
	t.Setenv("AGX_PLANNER_COMMAND", "")
	os.Unsetenv("AGX_PLANNER_COMMAND")
	t.Setenv("AGX_LOG_LEVEL", "")
	os.Unsetenv("AGX_LOG_LEVEL")

	cfg, err := Load(projectDir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if strings.Join(cfg.Project.Planner.Command, " ") != "cat -" {
		t.Fatalf("expected command from .env, got %v", cfg.Project.Planner.Command)
	}
	if cfg.Project.Log.Level != "warn" {
		t.Fatalf("expected level from .env, got %s", cfg.Project.Log.Level)
	}
	if cfg.Project.Verify {
		t.Fatalf("AGX_VERIFY should disable verification")
	}
	if cfg.Project.Planner.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.Project.Planner.Timeout)
	}
}

func TestWarningLevelAlias(t *testing.T) {
	t.Setenv("AGX_LOG_LEVEL", "WARNING")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Project.Log.Level != "warn" {
		t.Fatalf("expected warning to normalize to warn, got %q", cfg.Project.Log.Level)
	}
}

func TestEnvOverrideErrors(t *testing.T) {
	pc := defaultProjectConfig()
	lookup := func(key string) (string, bool) {
		if key == "AGX_VERIFY" {
			return "maybe", true
		}
		return "", false
	}
	if err := pc.applyEnv(lookup); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestInitAgxDir(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitAgxDir(projectDir); err != nil {
		t.Fatalf("InitAgxDir: %v", err)
	}
	for _, rel := range []string{"capabilities", "logs", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(projectDir, AgxDir, rel)); err != nil {
			t.Fatalf("expected %s: %v", rel, err)
		}
	}
	cfg, err := Load(projectDir)
	if err != nil {
		t.Fatalf("default config should load: %v", err)
	}
	if cfg.Project.Registry.Builtin != "devops" {
		t.Fatalf("unexpected builtin: %s", cfg.Project.Registry.Builtin)
	}
}
