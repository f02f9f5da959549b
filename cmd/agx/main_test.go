package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/agx/internal/logging"
	"github.com/kingrea/agx/internal/pipeline"
	"github.com/kingrea/agx/internal/plan"
	"github.com/kingrea/agx/internal/registries/devops"
)

const (
	validPlan   = `[{"function":"set_bucket_name","args":{"name":"agx-demo"},"assign":"b"},{"function":"log_message","args":{"message":"Bucket {b}"}}]`
	invalidPlan = `[{"function":"log_mesage","args":{"message":"{missing}"}}]`
)

func writePlan(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateFilesKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writePlan(t, dir, "a.json", validPlan),
		writePlan(t, dir, "b.json", invalidPlan),
		filepath.Join(dir, "missing.json"),
		writePlan(t, dir, "c.yaml", "- function: log_message\n  args:\n    message: hi\n"),
	}
	reports, err := validateFiles(context.Background(), devops.MustRegistry(), paths)
	if err != nil {
		t.Fatalf("validateFiles: %v", err)
	}
	if len(reports) != len(paths) {
		t.Fatalf("expected %d reports, got %d", len(paths), len(reports))
	}
	for i, r := range reports {
		if r.Path != paths[i] {
			t.Fatalf("report %d is for %s, want %s", i, r.Path, paths[i])
		}
	}
	if !reports[0].Valid || !reports[3].Valid {
		t.Fatalf("expected valid plans: %+v", reports)
	}
	if reports[1].Valid || len(reports[1].Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic: %+v", reports[1])
	}
	if reports[2].Error == "" {
		t.Fatalf("missing file should report an error")
	}

	var out bytes.Buffer
	writeReports(&out, reports)
	text := out.String()
	for _, want := range []string{"Step 1: Function 'log_mesage' does not exist.", "missing.json"} {
		if !strings.Contains(text, want) {
			t.Fatalf("report output lacks %q:\n%s", want, text)
		}
	}
}

func TestValidateFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := writePlan(t, t.TempDir(), "a.json", validPlan)
	if _, err := validateFiles(ctx, devops.MustRegistry(), []string{path}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func process(t *testing.T, src string) pipeline.Outcome {
	t.Helper()
	p, err := plan.ParseJSON([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return pipeline.New(devops.MustRegistry(), pipeline.WithLogger(logging.Discard())).Process(p)
}

func TestDeliverJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	d := delivery{json: true}
	if err := d.deliver(context.Background(), &stdout, &stderr, process(t, validPlan)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	var result map[string]string
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !strings.Contains(result["code"], "func run()") {
		t.Fatalf("unexpected result: %v", result)
	}

	stdout.Reset()
	err := d.deliver(context.Background(), &stdout, &stderr, process(t, invalidPlan))
	var code exitError
	if !errors.As(err, &code) || code != 1 {
		t.Fatalf("expected exit status 1, got %v", err)
	}
	if strings.TrimSpace(stdout.String()) != `{"error":"validation_failed"}` {
		t.Fatalf("unexpected result: %s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "Did you mean 'log_message'?") {
		t.Fatalf("diagnostics missing from stderr:\n%s", stderr.String())
	}
}

func TestDeliverWritesAndExecutes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	target := filepath.Join(t.TempDir(), "out", "main.go")
	d := delivery{output: target, exec: true}
	if err := d.deliver(context.Background(), &stdout, &stderr, process(t, validPlan)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read program: %v", err)
	}
	if !strings.HasPrefix(string(data), "// Code generated by agx.") {
		t.Fatalf("unexpected program:\n%s", data)
	}
	if !strings.Contains(stdout.String(), "[AGX DEVOPS] Bucket agx-demo") {
		t.Fatalf("program output missing: %q", stdout.String())
	}
}

func TestProgramPath(t *testing.T) {
	tests := []struct {
		plan, out, want string
	}{
		{"plans/deploy.json", "", filepath.Join("plans", "deploy.go")},
		{"plans/deploy.plan.yaml", "build", filepath.Join("build", "deploy.plan.go")},
	}
	for _, tt := range tests {
		if got := programPath(tt.plan, tt.out); got != tt.want {
			t.Fatalf("programPath(%q, %q) = %q, want %q", tt.plan, tt.out, got, tt.want)
		}
	}
}

func TestCompileOnChange(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "gen")
	pl := pipeline.New(devops.MustRegistry(), pipeline.WithLogger(logging.Discard()))
	handle := compileOnChange(pl, outDir, logging.Discard())

	handle(writePlan(t, dir, "good.json", validPlan))
	if _, err := os.Stat(filepath.Join(outDir, "good.go")); err != nil {
		t.Fatalf("expected compiled program: %v", err)
	}
	handle(writePlan(t, dir, "bad.json", invalidPlan))
	if _, err := os.Stat(filepath.Join(outDir, "bad.go")); !os.IsNotExist(err) {
		t.Fatalf("rejected plan must not produce a program: %v", err)
	}
}

func TestWriteCapabilities(t *testing.T) {
	var out bytes.Buffer
	writeCapabilities(&out, devops.MustRegistry())
	text := out.String()
	for _, want := range []string{"log_message(message string) none", "save_hcl_to_file("} {
		if !strings.Contains(text, want) {
			t.Fatalf("listing lacks %q:\n%s", want, text)
		}
	}
}
