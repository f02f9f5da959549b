// Package pipeline sequences obtain plan -> validate -> compile and reports a
// tagged outcome. It owns no state beyond its injected collaborators.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kingrea/agx/internal/capability"
	"github.com/kingrea/agx/internal/compile"
	"github.com/kingrea/agx/internal/logging"
	"github.com/kingrea/agx/internal/plan"
	"github.com/kingrea/agx/internal/planner"
	"github.com/kingrea/agx/internal/validate"
)

// Tag is the result contract exposed to CLI and service layers.
type Tag string

const (
	TagCode              Tag = "code"
	TagNoPrompt          Tag = "no_prompt"
	TagValidationFailed  Tag = "validation_failed"
	TagCompilationFailed Tag = "compilation_failed"
)

// ErrNoPlanner is reported when Handle is used without a planner.
var ErrNoPlanner = errors.New("pipeline: no planner configured")

// Outcome is the result of one pipeline run.
type Outcome struct {
	Tag         Tag
	Code        string
	Plan        plan.Plan
	Diagnostics []validate.Diagnostic
	// Err carries the underlying failure for logging; it is not part of the
	// result contract.
	Err error
}

// OK reports whether code was produced.
func (o Outcome) OK() bool {
	return o.Tag == TagCode
}

// Result renders the outcome as {"code": source} or {"error": tag}.
func (o Outcome) Result() map[string]string {
	if o.OK() {
		return map[string]string{"code": o.Code}
	}
	return map[string]string{"error": string(o.Tag)}
}

// Verifier checks generated source before it is returned.
type Verifier interface {
	Verify(src string) error
}

// Pipeline wires the validator and compiler to a catalog and, optionally, a
// planner and a verifier.
type Pipeline struct {
	catalog  capability.Catalog
	planner  *planner.Planner
	verifier Verifier
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPlanner enables Handle.
func WithPlanner(p *planner.Planner) Option {
	return func(pl *Pipeline) {
		pl.planner = p
	}
}

// WithVerifier checks compiled source, mapping rejection to compilation_failed.
func WithVerifier(v Verifier) Option {
	return func(pl *Pipeline) {
		pl.verifier = v
	}
}

// WithLogger sets the stage logger.
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) {
		pl.logger = l
	}
}

// New builds a pipeline over catalog.
func New(catalog capability.Catalog, opts ...Option) *Pipeline {
	pl := &Pipeline{catalog: catalog}
	for _, opt := range opts {
		opt(pl)
	}
	pl.logger = logging.OrDiscard(pl.logger).With("component", "pipeline")
	return pl
}

// Handle obtains a plan for prompt from the planner and processes it.
func (pl *Pipeline) Handle(ctx context.Context, prompt string) Outcome {
	if strings.TrimSpace(prompt) == "" {
		pl.logger.Warn("no prompt provided")
		return Outcome{Tag: TagNoPrompt}
	}
	if pl.planner == nil {
		return pl.noPlan(ErrNoPlanner)
	}
	p, err := pl.planner.Plan(ctx, prompt)
	if err != nil {
		return pl.noPlan(err)
	}
	return pl.Process(p)
}

// noPlan reports a generation or extraction failure as a validation failure
// against the plan as a whole.
func (pl *Pipeline) noPlan(err error) Outcome {
	pl.logger.Error("could not obtain a plan", "err", err)
	return Outcome{
		Tag: TagValidationFailed,
		Diagnostics: []validate.Diagnostic{{
			Code:    validate.CodeNoPlan,
			Message: fmt.Sprintf("No plan could be obtained: %v", err),
		}},
		Err: err,
	}
}

// Process validates p and, when valid, compiles it.
func (pl *Pipeline) Process(p plan.Plan) Outcome {
	start := time.Now()
	result := validate.Plan(p, pl.catalog)
	if !result.Valid() {
		pl.logger.Warn("plan validation failed", "steps", len(p), "problems", len(result.Diagnostics))
		for _, d := range result.Diagnostics {
			pl.logger.Debug(d.String(), "code", string(d.Code))
		}
		return Outcome{Tag: TagValidationFailed, Plan: p, Diagnostics: result.Diagnostics, Err: result.Err()}
	}
	pl.logger.Info("plan validated", "steps", len(p))

	code, err := compile.Plan(p, pl.catalog)
	if err == nil && strings.TrimSpace(code) == "" {
		err = compile.ErrCompile
	}
	if err == nil && pl.verifier != nil {
		err = pl.verifier.Verify(code)
	}
	if err != nil {
		pl.logger.Error("compilation failed", "err", err)
		return Outcome{Tag: TagCompilationFailed, Plan: p, Err: err}
	}
	pl.logger.Info("plan compiled", "bytes", len(code), "elapsed", time.Since(start).Round(time.Microsecond))
	return Outcome{Tag: TagCode, Code: code, Plan: p}
}
