// internal/config/config.go
//
// This package handles configuration and the .agx directory structure.
// Every project that uses agx may carry a .agx/ folder in its root holding
// config.yaml, local capability definitions and logs.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// AgxDir is the name of the per-project directory.
	AgxDir = ".agx"

	// EnvPrefix marks environment overrides, e.g. AGX_LOG_LEVEL.
	EnvPrefix = "AGX_"

	defaultRegistry = "devops"
	defaultTimeout  = 2 * time.Minute
)

const defaultProjectConfigYAML = `# agx project configuration
version: 1

registry:
  # Built-in capability set: devops or none.
  builtin: devops
  # Directories holding *.yaml capability definitions.
  dirs:
    - .agx/capabilities
  # Directories holding Go files that define Capabilities().
  go_dirs: []

planner:
  # Command that reads a prompt on stdin and prints the model output.
  # command: ["llm", "-m", "gpt-4.1-nano"]
  command: []
  # prompt_template: prompts/devops.txt
  timeout: 2m

# Load generated programs into the interpreter before returning them.
verify: true

log:
  level: info
  file: ""
  no_color: false
`

// RegistryConfig selects where capabilities come from.
type RegistryConfig struct {
	Builtin string   `yaml:"builtin"`
	Dirs    []string `yaml:"dirs,omitempty"`
	GoDirs  []string `yaml:"go_dirs,omitempty"`
}

// PlannerConfig configures the external plan generator.
type PlannerConfig struct {
	Command        []string      `yaml:"command,omitempty"`
	PromptTemplate string        `yaml:"prompt_template,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file,omitempty"`
	NoColor bool   `yaml:"no_color,omitempty"`
}

// ProjectConfig models .agx/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Registry RegistryConfig `yaml:"registry"`
	Planner  PlannerConfig  `yaml:"planner"`
	Verify   bool           `yaml:"verify"`
	Log      LogConfig      `yaml:"log"`
}

// Config holds the runtime configuration for agx.
type Config struct {
	// ProjectDir is the directory agx was started from.
	ProjectDir string

	// AgxProjectDir is ProjectDir/.agx
	AgxProjectDir string

	Project ProjectConfig
}

// InitAgxDir creates the .agx directory structure and a default config file.
//
// .agx/
// ├── config.yaml
// ├── capabilities/ <- YAML capability definitions
// └── logs/
func InitAgxDir(projectDir string) error {
	agxDir := filepath.Join(projectDir, AgxDir)
	for _, dir := range []string{
		filepath.Join(agxDir, "capabilities"),
		filepath.Join(agxDir, "logs"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(agxDir, "config.yaml"))
}

// Load reads .env, .agx/config.yaml and AGX_* overrides for projectDir.
// Missing files fall back to defaults.
func Load(projectDir string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(projectDir, ".env")); err != nil {
		return nil, err
	}
	cfg := &Config{
		ProjectDir:    projectDir,
		AgxProjectDir: filepath.Join(projectDir, AgxDir),
		Project:       defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.Project.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Project.normalize(projectDir)
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv populates the environment from path without overriding
// variables that are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.AgxProjectDir, "config.yaml")
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.AgxProjectDir, "logs")
}

// LogFile returns the configured log file, or "" to log to stderr only.
func (c *Config) LogFile() string {
	return c.Project.Log.File
}

// PlannerEnabled reports whether a planner command is configured.
func (c *Config) PlannerEnabled() bool {
	return len(c.Project.Planner.Command) > 0
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Registry: RegistryConfig{
			Builtin: defaultRegistry,
			Dirs:    []string{filepath.Join(AgxDir, "capabilities")},
		},
		Planner: PlannerConfig{Timeout: defaultTimeout},
		Verify:  true,
		Log:     LogConfig{Level: "info"},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Planner.Timeout == 0 {
		pc.Planner.Timeout = defaultTimeout
	}
	if strings.TrimSpace(pc.Log.Level) == "" {
		pc.Log.Level = "info"
	}
}

// applyEnv overlays AGX_* variables onto the file configuration.
func (pc *ProjectConfig) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "REGISTRY"); ok {
		pc.Registry.Builtin = v
	}
	if v, ok := lookup(EnvPrefix + "CAPABILITY_DIRS"); ok {
		pc.Registry.Dirs = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "PLANNER_COMMAND"); ok {
		pc.Planner.Command = strings.Fields(v)
	}
	if v, ok := lookup(EnvPrefix + "PROMPT_TEMPLATE"); ok {
		pc.Planner.PromptTemplate = v
	}
	if v, ok := lookup(EnvPrefix + "PLANNER_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sPLANNER_TIMEOUT: %w", EnvPrefix, err)
		}
		pc.Planner.Timeout = d
	}
	if v, ok := lookup(EnvPrefix + "VERIFY"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sVERIFY: %w", EnvPrefix, err)
		}
		pc.Verify = b
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		pc.Log.Level = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_FILE"); ok {
		pc.Log.File = v
	}
	if _, ok := lookup("NO_COLOR"); ok {
		pc.Log.NoColor = true
	}
	return nil
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Registry.Builtin = strings.ToLower(strings.TrimSpace(pc.Registry.Builtin))
	pc.Registry.Dirs = resolvePaths(base, pc.Registry.Dirs)
	pc.Registry.GoDirs = resolvePaths(base, pc.Registry.GoDirs)
	pc.Planner.PromptTemplate = resolvePath(base, pc.Planner.PromptTemplate)
	pc.Log.Level = strings.ToLower(strings.TrimSpace(pc.Log.Level))
	if pc.Log.Level == "warning" {
		pc.Log.Level = "warn"
	}
	pc.Log.File = resolvePath(base, pc.Log.File)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Registry.Builtin {
	case "", "none", defaultRegistry:
	default:
		return fmt.Errorf("registry.builtin must be 'devops' or 'none'")
	}
	if pc.Planner.Timeout <= 0 {
		return fmt.Errorf("planner.timeout must be positive")
	}
	switch pc.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, string(os.PathListSeparator)) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func resolvePaths(base string, values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if resolved := resolvePath(base, v); resolved != "" {
			out = append(out, resolved)
		}
	}
	return out
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
