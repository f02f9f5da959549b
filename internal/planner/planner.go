// Package planner turns a free-form request into a candidate plan by asking an
// external generator and extracting the first JSON array of step objects from
// whatever it prints.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kingrea/agx/internal/logging"
	"github.com/kingrea/agx/internal/plan"
)

// TaskPlaceholder marks where the request goes in a prompt template.
const TaskPlaceholder = "{{TASK}}"

// ErrNoPlan is returned when the generator output holds no plan.
var ErrNoPlan = errors.New("planner: no JSON plan found in output")

// Generator produces raw model output for a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Planner renders prompts and parses generator output.
type Planner struct {
	template  string
	generator Generator
	logger    *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger used for raw output and parse failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		p.logger = l
	}
}

// New returns a planner. An empty template sends the request verbatim.
func New(gen Generator, template string, opts ...Option) *Planner {
	p := &Planner{template: template, generator: gen}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDiscard(p.logger).With("component", "planner")
	return p
}

// Render substitutes task into the template.
func (p *Planner) Render(task string) string {
	if strings.TrimSpace(p.template) == "" {
		return task
	}
	return strings.ReplaceAll(p.template, TaskPlaceholder, task)
}

// Plan asks the generator for a plan and decodes it.
func (p *Planner) Plan(ctx context.Context, task string) (plan.Plan, error) {
	if p.generator == nil {
		return nil, fmt.Errorf("planner: no generator configured")
	}
	p.logger.Info("generating plan")
	raw, err := p.generator.Generate(ctx, p.Render(task))
	if err != nil {
		return nil, fmt.Errorf("planner: generate: %w", err)
	}
	p.logger.Debug("raw generator output", "output", raw)
	doc, err := Extract(raw)
	if err != nil {
		p.logger.Warn("failed to extract plan", "err", err)
		return nil, err
	}
	parsed, err := plan.ParseJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	p.logger.Info("plan parsed", "steps", len(parsed))
	return parsed, nil
}

var arrayStart = regexp.MustCompile(`\[\s*\{`)

// Extract returns the first well-formed JSON array whose first element is an
// object. Prose and code fences around it are ignored.
func Extract(raw string) ([]byte, error) {
	offset := 0
	for {
		loc := arrayStart.FindStringIndex(raw[offset:])
		if loc == nil {
			return nil, ErrNoPlan
		}
		start := offset + loc[0]
		dec := json.NewDecoder(strings.NewReader(raw[start:]))
		var doc json.RawMessage
		if err := dec.Decode(&doc); err == nil {
			return doc, nil
		}
		offset = start + 1
	}
}
