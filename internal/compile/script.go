package compile

import (
	"context"
	"fmt"

	"github.com/jkaninda/coderun/internal/sandbox"
)

// Script is the recipe shape shared by the interpreted languages. The image
// entrypoint reads TYPE to decide how to install dependencies, then runs the
// entry file given as the container command.
type Script struct {
	Image  string
	Mode   string // Rendered dependency mode, e.g. "requirements.txt".
	Runner sandbox.Runner
}

var _ Service = (*Script)(nil)

// Args synthesizes the 10-element container argument vector.
func (s *Script) Args(projectDir, entryFile string) ([]string, error) {
	entry, err := PathText(entryFile)
	if err != nil {
		return nil, fmt.Errorf("entry_file: %w", err)
	}
	return Invocation{
		ProjectDir: projectDir,
		Env:        []string{"TYPE=" + s.Mode},
		Image:      s.Image,
		Command:    []string{entry},
	}.Args()
}

// CompileProject runs entryFile from projectDir inside the recipe image.
func (s *Script) CompileProject(ctx context.Context, projectDir string, entryFile *string) (*sandbox.ExecutionResult, error) {
	if entryFile == nil || *entryFile == "" {
		return nil, ErrMissingEntryFile
	}
	args, err := s.Args(projectDir, *entryFile)
	if err != nil {
		return nil, err
	}
	return s.Runner.Run(ctx, args)
}
