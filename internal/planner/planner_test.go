package planner

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare",
			raw:  `[{"function":"log_message","args":{"message":"hi"}}]`,
			want: `[{"function":"log_message","args":{"message":"hi"}}]`,
		},
		{
			name: "prose and fences",
			raw:  "Here is the plan:\n```json\n[\n  {\"function\": \"a\"}\n]\n```\nDone.",
			want: "[\n  {\"function\": \"a\"}\n]",
		},
		{
			name: "nested arrays",
			raw:  `plan: [{"function":"f","args":{"x":[{"y":1}]}}, {"function":"g"}] trailing`,
			want: `[{"function":"f","args":{"x":[{"y":1}]}}, {"function":"g"}]`,
		},
		{
			name: "skips broken candidate",
			raw:  `[{broken] then [{"function":"ok"}]`,
			want: `[{"function":"ok"}]`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(tc.raw)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("Extract = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractNoPlan(t *testing.T) {
	for _, raw := range []string{"", "no json here", `["a", "b"]`, `{"function":"x"}`} {
		if _, err := Extract(raw); !errors.Is(err, ErrNoPlan) {
			t.Fatalf("Extract(%q) error = %v, want ErrNoPlan", raw, err)
		}
	}
}

func TestPlannerRendersAndParses(t *testing.T) {
	var seen string
	gen := GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		seen = prompt
		return `Sure! [{"function":"set_bucket_name","args":{"name":"x"},"assign":"b"}]`, nil
	})
	p := New(gen, "Task: {{TASK}}")
	got, err := p.Plan(context.Background(), "make a bucket")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if seen != "Task: make a bucket" {
		t.Fatalf("unexpected prompt: %q", seen)
	}
	if len(got) != 1 || got[0].Function != "set_bucket_name" || got[0].Assign != "b" {
		t.Fatalf("unexpected plan: %+v", got)
	}
}

func TestPlannerErrors(t *testing.T) {
	failing := GeneratorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("quota exceeded")
	})
	if _, err := New(failing, "").Plan(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected generator error, got %v", err)
	}
	chatty := GeneratorFunc(func(context.Context, string) (string, error) {
		return "I cannot help with that.", nil
	})
	if _, err := New(chatty, "").Plan(context.Background(), "x"); !errors.Is(err, ErrNoPlan) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
	if _, err := New(nil, "").Plan(context.Background(), "x"); err == nil {
		t.Fatalf("expected error without generator")
	}
}

func TestCommandGenerator(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	gen := CommandGenerator{Command: []string{"cat"}, Timeout: 10 * time.Second}
	out, err := gen.Generate(context.Background(), `[{"function":"f"}]`)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `[{"function":"f"}]` {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCommandGeneratorFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	gen := CommandGenerator{Command: []string{"sh", "-c", "echo nope >&2; exit 3"}}
	_, err := gen.Generate(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if _, err := (CommandGenerator{}).Generate(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty command")
	}
}
