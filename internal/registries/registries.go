// Package registries assembles the capability registry a project runs with:
// the configured built-in set plus every definition directory.
package registries

import (
	"fmt"
	"os"
	"strings"

	"github.com/kingrea/agx/internal/capability"
	"github.com/kingrea/agx/internal/config"
	"github.com/kingrea/agx/internal/registries/devops"
)

// Builtins lists the built-in capability sets by name.
var Builtins = []string{"devops"}

// Load builds the registry described by cfg. Directories that do not exist
// are skipped.
func Load(cfg *config.Config) (*capability.Registry, error) {
	reg, err := builtin(cfg.Project.Registry.Builtin)
	if err != nil {
		return nil, err
	}
	for _, dir := range cfg.Project.Registry.Dirs {
		files, err := capability.LoadDefinitionDir(dir)
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterAll(files); err != nil {
			return nil, fmt.Errorf("registries: %w", err)
		}
	}
	for _, dir := range cfg.Project.Registry.GoDirs {
		files, err := capability.LoadGoDefinitionDir(dir)
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterAll(files); err != nil {
			return nil, fmt.Errorf("registries: %w", err)
		}
	}
	return reg, nil
}

func builtin(name string) (*capability.Registry, error) {
	switch name {
	case "", "none":
		return capability.NewRegistry(), nil
	case "devops":
		return devops.Registry()
	default:
		return nil, fmt.Errorf("registries: unknown built-in set %q", name)
	}
}

// PromptTemplate returns the planner prompt: the configured template file if
// any, otherwise the one shipped with the built-in set.
func PromptTemplate(cfg *config.Config) (string, error) {
	if path := cfg.Project.Planner.PromptTemplate; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("registries: read prompt template: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", fmt.Errorf("registries: prompt template %s is empty", path)
		}
		return string(data), nil
	}
	if cfg.Project.Registry.Builtin == "devops" {
		return devops.PromptTemplate, nil
	}
	return "", fmt.Errorf("registries: no prompt template configured")
}
