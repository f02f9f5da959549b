package planner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CommandGenerator runs an external program with the prompt on stdin and
// returns its stdout. Any model client that speaks stdin/stdout can serve.
type CommandGenerator struct {
	Command []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Generate runs the command once.
func (g CommandGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if len(g.Command) == 0 {
		return "", fmt.Errorf("planner: command is empty")
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, g.Command[0], g.Command[1:]...)
	cmd.Dir = g.Dir
	if len(g.Env) > 0 {
		cmd.Env = append(os.Environ(), g.Env...)
	}
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("planner: %s: %w", g.Command[0], ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("planner: %s: %w", g.Command[0], err)
		}
		return "", fmt.Errorf("planner: %s: %w: %s", g.Command[0], err, msg)
	}
	return stdout.String(), nil
}
