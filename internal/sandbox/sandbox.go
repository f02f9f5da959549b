// Package sandbox loads generated programs into a Go interpreter. Check only
// compiles; Exec runs main with captured output.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ErrRejected wraps interpreter failures for generated source.
var ErrRejected = errors.New("sandbox: source rejected")

// Checker verifies that generated source type-checks in the interpreter.
type Checker struct{}

// Verify compiles src without running it.
func (Checker) Verify(src string) error {
	i, err := newInterpreter(nil, nil)
	if err != nil {
		return err
	}
	if _, err := i.Compile(src); err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return nil
}

// Output is what a program wrote while running.
type Output struct {
	Stdout string
	Stderr string
}

// Exec interprets src and runs its main function. Panics raised by the
// program are returned as errors.
func Exec(ctx context.Context, src string) (out Output, err error) {
	var stdout, stderr bytes.Buffer
	i, err := newInterpreter(&stdout, &stderr)
	if err != nil {
		return Output{}, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrRejected, r)
		}
		out = Output{Stdout: stdout.String(), Stderr: stderr.String()}
	}()
	if _, err := i.EvalWithContext(ctx, src); err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return Output{}, nil
}

func newInterpreter(stdout, stderr *bytes.Buffer) (*interp.Interpreter, error) {
	opts := interp.Options{}
	if stdout != nil {
		opts.Stdout = stdout
	}
	if stderr != nil {
		opts.Stderr = stderr
	}
	i := interp.New(opts)
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("sandbox: load stdlib: %w", err)
	}
	return i, nil
}

// FirstLine trims interpreter errors to their first line for display.
func FirstLine(err error) string {
	if err == nil {
		return ""
	}
	line, _, _ := strings.Cut(err.Error(), "\n")
	return line
}
