// Package scriptb is the recipe for the JavaScript-family runtime.
package scriptb

import (
	"fmt"

	"github.com/jkaninda/coderun/internal/compile"
	"github.com/jkaninda/coderun/internal/sandbox"
)

const DefaultImage = "scriptb-no-root"

// Dependency selects the package manager the image uses before running the
// entry file.
type Dependency string

const (
	Npm     Dependency = "Npm"
	Yarn    Dependency = "Yarn"
	Default Dependency = "Default"
)

var Dependencies = []Dependency{Npm, Yarn, Default}

func (d Dependency) String() string {
	switch d {
	case Npm:
		return "npm"
	case Yarn:
		return "yarn"
	default:
		return "default"
	}
}

func ParseDependency(s string) (Dependency, error) {
	for _, d := range Dependencies {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dependency_type %q (want one of %v)", s, Dependencies)
}

func (d *Dependency) UnmarshalText(b []byte) error {
	parsed, err := ParseDependency(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// New returns the recipe; nil dep means Default.
func New(dep *Dependency, image string, runner sandbox.Runner) *compile.Script {
	mode := Default
	if dep != nil {
		mode = *dep
	}
	if image == "" {
		image = DefaultImage
	}
	return &compile.Script{
		Image:  image,
		Mode:   mode.String(),
		Runner: runner,
	}
}
