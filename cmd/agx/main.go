// cmd/agx/main.go
//
// This is the entry point for the agx CLI. Every subcommand loads the project
// configuration from the working directory (or --project), builds the
// capability registry and then drives the pipeline.
//
// Subcommands:
//
//	agx init                       create .agx/ with a default config
//	agx capabilities               list registered capabilities
//	agx validate PLAN...           validate plan files
//	agx compile [-o FILE] PLAN     compile a plan into a Go program
//	agx run [-o FILE] TASK...      plan a task with the configured planner
//	agx watch [-out DIR] DIR       recompile plans whenever they change
//	agx review [-o FILE] PLAN      inspect a plan interactively

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kingrea/agx/internal/capability"
	"github.com/kingrea/agx/internal/config"
	"github.com/kingrea/agx/internal/logging"
	"github.com/kingrea/agx/internal/pipeline"
	"github.com/kingrea/agx/internal/planner"
	"github.com/kingrea/agx/internal/registries"
	"github.com/kingrea/agx/internal/sandbox"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = []command{
	{"init", "create .agx/ with a default config", runInit},
	{"capabilities", "list registered capabilities", runCapabilities},
	{"validate", "validate one or more plan files", runValidate},
	{"compile", "compile a plan file into a Go program", runCompile},
	{"run", "generate a plan for a task and compile it", runRun},
	{"watch", "recompile plan files in a directory as they change", runWatch},
	{"review", "review a plan in the terminal UI", runReview},
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	name := flag.Arg(0)
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err := cmd.run(ctx, flag.Args()[1:])
		stop()
		var code exitError
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		if err != nil {
			die("%s: %v", name, err)
		}
		return
	}
	usage()
	die("unknown command %q", name)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: agx <command> [flags] [args]\n\ncommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-13s %s\n", cmd.name, cmd.summary)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// exitError carries a process exit code without an extra message.
type exitError int

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// session is everything a subcommand needs once the project is loaded.
type session struct {
	cfg      *config.Config
	log      *logging.Logger
	registry *capability.Registry
}

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	project := fs.String("project", "", "path to the project directory (defaults to cwd)")
	return fs, project
}

func resolveProject(project string) (string, error) {
	if strings.TrimSpace(project) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		project = wd
	}
	abs, err := filepath.Abs(project)
	if err != nil {
		return "", fmt.Errorf("resolve project dir: %w", err)
	}
	return abs, nil
}

func openSession(project string) (*session, error) {
	dir, err := resolveProject(project)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(os.Stderr, logging.Options{
		Level:   cfg.Project.Log.Level,
		NoColor: cfg.Project.Log.NoColor,
		File:    cfg.LogFile(),
	})
	if err != nil {
		return nil, err
	}
	reg, err := registries.Load(cfg)
	if err != nil {
		log.Close()
		return nil, err
	}
	log.Debug("registry loaded", "capabilities", reg.Len(), "builtin", cfg.Project.Registry.Builtin)
	return &session{cfg: cfg, log: log, registry: reg}, nil
}

func (s *session) Close() {
	s.log.Close()
}

// pipeline wires the registry, verifier and, when configured, the planner.
// extra options are applied last.
func (s *session) pipeline(extra ...pipeline.Option) (*pipeline.Pipeline, error) {
	opts := []pipeline.Option{pipeline.WithLogger(s.log.Logger)}
	if s.cfg.Project.Verify {
		opts = append(opts, pipeline.WithVerifier(sandbox.Checker{}))
	}
	if s.cfg.PlannerEnabled() {
		tmpl, err := registries.PromptTemplate(s.cfg)
		if err != nil {
			return nil, err
		}
		gen := planner.CommandGenerator{
			Command: s.cfg.Project.Planner.Command,
			Dir:     s.cfg.ProjectDir,
			Timeout: s.cfg.Project.Planner.Timeout,
		}
		opts = append(opts, pipeline.WithPlanner(planner.New(gen, tmpl, planner.WithLogger(s.log.Logger))))
	}
	return pipeline.New(s.registry, append(opts, extra...)...), nil
}
