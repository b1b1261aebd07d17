// Package compile defines the capability every language recipe provides:
// run a project directory (optionally from an entry file) inside its
// container image and return the captured result.
//
// Recipes live in sub-packages (scripta, scriptb, systemsc). Each one only
// synthesizes the container argument vector; spawning is delegated to a
// sandbox.Runner.
package compile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jkaninda/coderun/internal/sandbox"
)

// MountPath is the directory inside every container where the project is
// bind-mounted and which is used as the working directory.
const MountPath = "/usr/src/app"

var (
	// ErrMissingEntryFile is returned by scripting recipes called without an
	// entry file, or with an empty one.
	ErrMissingEntryFile = errors.New("entry_file needs to be defined")

	// ErrPathNotText is returned when a host path cannot be rendered as CLI text.
	ErrPathNotText = errors.New("path is not representable as text")
)

// Service produces an ExecutionResult for a project directory.
// entryFile is nil when the caller supplied none; recipes that need it
// return ErrMissingEntryFile, the others ignore it.
type Service interface {
	CompileProject(ctx context.Context, projectDir string, entryFile *string) (*sandbox.ExecutionResult, error)
}

// Invocation describes one container run before it is rendered to CLI arguments.
type Invocation struct {
	ProjectDir string   // Host directory, mounted at MountPath.
	Env        []string // KEY=VALUE pairs, each emitted as "-e KEY=VALUE".
	Image      string
	Command    []string // Appended after the image.
}

// Args renders the invocation as:
//
//	run --rm -v <host>:/usr/src/app [-e K=V]... -w /usr/src/app <image> <command...>
func (inv Invocation) Args() ([]string, error) {
	host, err := PathText(inv.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("project_dir: %w", err)
	}
	args := make([]string, 0, 8+2*len(inv.Env)+len(inv.Command))
	args = append(args, "run", "--rm", "-v", host+":"+MountPath)
	for _, kv := range inv.Env {
		args = append(args, "-e", kv)
	}
	args = append(args, "-w", MountPath, inv.Image)
	args = append(args, inv.Command...)
	return args, nil
}

// PathText returns p unchanged if it can be passed to the container CLI as a
// single positional value: valid UTF-8, no NUL byte, no leading "-".
func PathText(p string) (string, error) {
	if !utf8.ValidString(p) || strings.ContainsRune(p, 0) || strings.HasPrefix(p, "-") {
		return "", fmt.Errorf("%w: %q", ErrPathNotText, p)
	}
	return p, nil
}
