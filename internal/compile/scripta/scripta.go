// Package scripta is the recipe for the Python-family runtime.
package scripta

import (
	"fmt"

	"github.com/jkaninda/coderun/internal/compile"
	"github.com/jkaninda/coderun/internal/sandbox"
)

// DefaultImage is the pre-built image the recipe runs in.
const DefaultImage = "scripta-no-root"

// Dependency selects how the image installs project dependencies.
// The wire form is the variant name; String returns the value sent as TYPE.
type Dependency string

const (
	RequirementsTxt Dependency = "RequirementsTxt"
	Uv              Dependency = "Uv"
	Default         Dependency = "Default"
)

// Dependencies lists the accepted wire values in declaration order.
var Dependencies = []Dependency{RequirementsTxt, Uv, Default}

func (d Dependency) String() string {
	switch d {
	case RequirementsTxt:
		return "requirements.txt"
	case Uv:
		return "uv"
	default:
		return "default"
	}
}

// ParseDependency converts a wire value into a Dependency.
func ParseDependency(s string) (Dependency, error) {
	for _, d := range Dependencies {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dependency_type %q (want one of %v)", s, Dependencies)
}

// UnmarshalText rejects values outside the enumeration.
func (d *Dependency) UnmarshalText(b []byte) error {
	parsed, err := ParseDependency(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// New returns the recipe. A nil dependency is treated as Default and an
// empty image as DefaultImage.
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
