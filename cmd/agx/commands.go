package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/agx/internal/capability"
	"github.com/kingrea/agx/internal/config"
	"github.com/kingrea/agx/internal/logging"
	"github.com/kingrea/agx/internal/pipeline"
	"github.com/kingrea/agx/internal/plan"
	"github.com/kingrea/agx/internal/sandbox"
	"github.com/kingrea/agx/internal/tui"
	"github.com/kingrea/agx/internal/validate"
	"github.com/kingrea/agx/internal/watch"
)

var (
	nameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

func runInit(_ context.Context, args []string) error {
	fs, project := newFlagSet("init")
	fs.Parse(args)
	dir, err := resolveProject(*project)
	if err != nil {
		return err
	}
	if err := config.InitAgxDir(dir); err != nil {
		return err
	}
	fmt.Printf("Initialized %s\n", filepath.Join(dir, config.AgxDir))
	return nil
}

func runCapabilities(_ context.Context, args []string) error {
	fs, project := newFlagSet("capabilities")
	fs.Parse(args)
	s, err := openSession(*project)
	if err != nil {
		return err
	}
	defer s.Close()
	writeCapabilities(os.Stdout, s.registry)
	return nil
}

func writeCapabilities(w io.Writer, catalog capability.Catalog) {
	for _, name := range catalog.Names() {
		c, ok := catalog.Lookup(name)
		if !ok {
			continue
		}
		fmt.Fprintln(w, nameStyle.Render(c.Signature()))
		if c.Description != "" {
			fmt.Fprintln(w, "  "+dimStyle.Render(firstLine(c.Description)))
		}
	}
}

// report is the validation result for one plan file.
type report struct {
	Path        string   `json:"path"`
	Valid       bool     `json:"valid"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func runValidate(ctx context.Context, args []string) error {
	fs, project := newFlagSet("validate")
	asJSON := fs.Bool("json", false, "print reports as JSON")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("at least one plan file is required")
	}
	s, err := openSession(*project)
	if err != nil {
		return err
	}
	defer s.Close()

	reports, err := validateFiles(ctx, s.registry, fs.Args())
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		writeReports(os.Stdout, reports)
	}
	for _, r := range reports {
		if !r.Valid {
			return exitError(1)
		}
	}
	return nil
}

// validateFiles loads and validates every path concurrently. Reports keep
// the order of paths.
func validateFiles(ctx context.Context, catalog capability.Catalog, paths []string) ([]report, error) {
	reports := make([]report, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = validateFile(catalog, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func validateFile(catalog capability.Catalog, path string) report {
	r := report{Path: path}
	p, err := plan.Load(path)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	result := validate.Plan(p, catalog)
	r.Valid = result.Valid()
	r.Diagnostics = result.Strings()
	return r
}

func writeReports(w io.Writer, reports []report) {
	for _, r := range reports {
		switch {
		case r.Error != "":
			fmt.Fprintf(w, "%s %s: %s\n", failStyle.Render("✗"), r.Path, r.Error)
		case r.Valid:
			fmt.Fprintf(w, "%s %s\n", okStyle.Render("✓"), r.Path)
		default:
			fmt.Fprintf(w, "%s %s\n", failStyle.Render("✗"), r.Path)
			for _, d := range r.Diagnostics {
				fmt.Fprintf(w, "    %s\n", d)
			}
		}
	}
}

// delivery controls what happens to a pipeline outcome.
type delivery struct {
	output string
	exec   bool
	json   bool
}

func (d *delivery) register(fs *flag.FlagSet, jsonDefault bool) {
	fs.StringVar(&d.output, "o", "", "write the generated program to this file")
	fs.BoolVar(&d.exec, "exec", false, "run the generated program in the interpreter")
	fs.BoolVar(&d.json, "json", jsonDefault, "print the result as {\"code\": ...} or {\"error\": tag}")
}

func runCompile(ctx context.Context, args []string) error {
	fs, project := newFlagSet("compile")
	var d delivery
	d.register(fs, false)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("exactly one plan file is required")
	}
	s, err := openSession(*project)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := plan.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	pl, err := s.pipeline()
	if err != nil {
		return err
	}
	return d.deliver(ctx, os.Stdout, os.Stderr, pl.Process(p))
}

func runRun(ctx context.Context, args []string) error {
	fs, project := newFlagSet("run")
	var d delivery
	d.register(fs, true)
	fs.Parse(args)
	s, err := openSession(*project)
	if err != nil {
		return err
	}
	defer s.Close()
	if !s.cfg.PlannerEnabled() {
		return fmt.Errorf("no planner command configured; set planner.command in %s or %sPLANNER_COMMAND",
			s.cfg.ProjectConfigPath(), config.EnvPrefix)
	}
	pl, err := s.pipeline()
	if err != nil {
		return err
	}
	return d.deliver(ctx, os.Stdout, os.Stderr, pl.Handle(ctx, strings.Join(fs.Args(), " ")))
}

// deliver prints or writes the outcome. A failed outcome exits with status 1.
func (d delivery) deliver(ctx context.Context, stdout, stderr io.Writer, out pipeline.Outcome) error {
	if d.json {
		if err := json.NewEncoder(stdout).Encode(out.Result()); err != nil {
			return err
		}
	}
	if !out.OK() {
		if !d.json {
			fmt.Fprintf(stderr, "%s %s\n", failStyle.Render("✗"), out.Tag)
		}
		for _, diag := range out.Diagnostics {
			fmt.Fprintf(stderr, "    %s\n", diag)
		}
		if out.Err != nil && len(out.Diagnostics) == 0 {
			fmt.Fprintf(stderr, "    %s\n", sandbox.FirstLine(out.Err))
		}
		return exitError(1)
	}
	if d.output != "" {
		if err := writeProgram(d.output, out.Code); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "%s wrote %s\n", okStyle.Render("✓"), d.output)
	} else if !d.json && !d.exec {
		fmt.Fprint(stdout, out.Code)
	}
	if !d.exec {
		return nil
	}
	res, err := sandbox.Exec(ctx, out.Code)
	fmt.Fprint(stdout, res.Stdout)
	fmt.Fprint(stderr, res.Stderr)
	return err
}

func writeProgram(path, code string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// programPath maps a plan file to the program written next to it, or into
// outDir when set.
func programPath(planPath, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(planPath), filepath.Ext(planPath)) + ".go"
	if outDir == "" {
		return filepath.Join(filepath.Dir(planPath), base)
	}
	return filepath.Join(outDir, base)
}

func runWatch(ctx context.Context, args []string) error {
	fs, project := newFlagSet("watch")
	outDir := fs.String("out", "", "directory for generated programs (defaults to the plan's directory)")
	debounce := fs.Duration("debounce", watch.DefaultDebounce, "quiet period before a changed plan is compiled")
	fs.Parse(args)
	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	s, err := openSession(*project)
	if err != nil {
		return err
	}
	defer s.Close()
	pl, err := s.pipeline()
	if err != nil {
		return err
	}

	w, err := watch.New(dir, compileOnChange(pl, *outDir, s.log.Logger),
		watch.WithDebounce(*debounce), watch.WithLogger(s.log.Logger))
	if err != nil {
		return err
	}
	defer w.Close()
	s.log.Info("watching for plan changes", "dir", dir)
	return w.Run(ctx)
}

func compileOnChange(pl *pipeline.Pipeline, outDir string, log *slog.Logger) watch.Handler {
	return func(path string) {
		p, err := plan.Load(path)
		if err != nil {
			log.Error("could not load plan", "path", path, "err", err)
			return
		}
		out := pl.Process(p)
		if !out.OK() {
			for _, d := range out.Diagnostics {
				log.Warn(d.String(), "path", path)
			}
			log.Error("plan rejected", "path", path, "result", string(out.Tag))
			return
		}
		target := programPath(path, outDir)
		if err := writeProgram(target, out.Code); err != nil {
			log.Error("could not write program", "path", target, "err", err)
			return
		}
		log.Info("compiled plan", "plan", path, "program", target)
	}
}

func runReview(_ context.Context, args []string) error {
	fs, project := newFlagSet("review")
	output := fs.String("o", "", "file the w key writes the generated program to")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("exactly one plan file is required")
	}
	s, err := openSession(*project)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := plan.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	// The console handler would draw over the UI.
	pl, err := s.pipeline(pipeline.WithLogger(logging.Discard()))
	if err != nil {
		return err
	}
	prog := tea.NewProgram(
		tui.NewApp(pl, p, tui.WithOutputPath(*output), tui.WithSource(fs.Arg(0))),
		tea.WithAltScreen(),
	)
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
