// Package systemsc is the recipe for the Rust-family toolchain. The project
// is built and run (or tested) with cargo; there is no entry file.
package systemsc

import (
	"context"
	"fmt"

	"github.com/jkaninda/coderun/internal/compile"
	"github.com/jkaninda/coderun/internal/sandbox"
)

const DefaultImage = "systemsc-no-root"

// Execution is the cargo sub-command. Wire form and rendering are both lowercase.
type Execution string

const (
	Run  Execution = "run"
	Test Execution = "test"
)

var Executions = []Execution{Run, Test}

func (e Execution) String() string { return string(e) }

func ParseExecution(s string) (Execution, error) {
	switch Execution(s) {
	case Run, Test:
		return Execution(s), nil
	}
	return "", fmt.Errorf("unknown execution_type %q (want one of %v)", s, Executions)
}

func (e *Execution) UnmarshalText(b []byte) error {
	parsed, err := ParseExecution(string(b))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Recipe runs `cargo <mode>` in the project directory.
type Recipe struct {
	image     string
	execution Execution
	runner    sandbox.Runner
}

var _ compile.Service = (*Recipe)(nil)

func New(execution Execution, image string, runner sandbox.Runner) *Recipe {
	if image == "" {
		image = DefaultImage
	}
	return &Recipe{image: image, execution: execution, runner: runner}
}

// Args synthesizes the 9-element container argument vector.
func (r *Recipe) Args(projectDir string) ([]string, error) {
	return compile.Invocation{
		ProjectDir: projectDir,
		Image:      r.image,
		Command:    []string{"cargo", r.execution.String()},
	}.Args()
}

// CompileProject ignores entryFile.
func (r *Recipe) CompileProject(ctx context.Context, projectDir string, _ *string) (*sandbox.ExecutionResult, error) {
	args, err := r.Args(projectDir)
	if err != nil {
		return nil, err
	}
	return r.runner.Run(ctx, args)
}
