// Package devops is the built-in AWS/Terraform demo registry.
package devops

import (
	_ "embed"
	"fmt"

	"github.com/kingrea/agx/internal/capability"
)

//go:embed devops.yaml
var definitions []byte

// PromptTemplate is the planner prompt matching this registry. {{TASK}} marks
// where the user request goes.
//
//go:embed prompt.txt
var PromptTemplate string

// Capabilities parses the embedded definitions.
func Capabilities() ([]capability.Capability, error) {
	caps, err := capability.ParseDefinitionYAML(definitions)
	if err != nil {
		return nil, fmt.Errorf("devops: %w", err)
	}
	return caps, nil
}

// Registry returns a fresh registry holding the demo capabilities.
func Registry() (*capability.Registry, error) {
	caps, err := Capabilities()
	if err != nil {
		return nil, err
	}
	reg := capability.NewRegistry()
	if err := reg.RegisterAll([]capability.DefinitionFile{{Capabilities: caps, Path: "devops.yaml"}}); err != nil {
		return nil, err
	}
	return reg, nil
}

// MustRegistry is Registry for static initialisation.
func MustRegistry() *capability.Registry {
	reg, err := Registry()
	if err != nil {
		panic(err)
	}
	return reg
}
