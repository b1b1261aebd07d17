package scripta

import (
	"context"
	"errors"
	"testing"

	"github.com/jkaninda/coderun/internal/compile"
	"github.com/jkaninda/coderun/internal/sandbox"
)

type recordingRunner struct {
	calls [][]string
}

func (r *recordingRunner) Run(_ context.Context, args []string) (*sandbox.ExecutionResult, error) {
	r.calls = append(r.calls, args)
	return sandbox.NewExecutionResult("", "", 0), nil
}

func depPtr(d Dependency) *Dependency { return &d }

func TestArgs_RequirementsTxt(t *testing.T) {
	args, err := New(depPtr(RequirementsTxt), "", nil).Args("/p", "main.py")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"run", "--rm", "-v", "/p:/usr/src/app", "-e", "TYPE=requirements.txt", "-w", "/usr/src/app", "scripta-no-root", "main.py"}
	if len(args) != len(want) {
		t.Fatalf("args = %q, want %q", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestArgs_Modes(t *testing.T) {
	tests := []struct {
		name string
		dep  *Dependency
		want string
	}{
		{"absent", nil, "TYPE=default"},
		{"default", depPtr(Default), "TYPE=default"},
		{"uv", depPtr(Uv), "TYPE=uv"},
		{"requirements", depPtr(RequirementsTxt), "TYPE=requirements.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := New(tt.dep, "", nil).Args("/mock/path", "main.py")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(args) != 10 {
				t.Fatalf("len(args) = %d, want 10", len(args))
			}
			if args[3] != "/mock/path:/usr/src/app" {
				t.Errorf("mount = %q", args[3])
			}
			if args[5] != tt.want {
				t.Errorf("env = %q, want %q", args[5], tt.want)
			}
			if args[len(args)-1] != "main.py" {
				t.Errorf("last arg = %q, want main.py", args[len(args)-1])
			}
		})
	}
}

func TestNew_CustomImage(t *testing.T) {
	args, err := New(nil, "registry.local/py:3.12", nil).Args("/p", "main.py")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[8] != "registry.local/py:3.12" {
		t.Errorf("image = %q", args[8])
	}
}

func TestCompileProject_MissingEntryFile(t *testing.T) {
	runner := &recordingRunner{}
	_, err := New(nil, "", runner).CompileProject(context.Background(), "/p", nil)
	if !errors.Is(err, compile.ErrMissingEntryFile) {
		t.Fatalf("error = %v, want ErrMissingEntryFile", err)
	}
	if len(runner.calls) != 0 {
		t.Error("no child should be spawned without an entry file")
	}
}

func TestParseDependency(t *testing.T) {
	for _, d := range Dependencies {
		got, err := ParseDependency(string(d))
		if err != nil || got != d {
			t.Errorf("ParseDependency(%q) = %q, %v", d, got, err)
		}
	}
	if _, err := ParseDependency("pip"); err == nil {
		t.Error("expected error for unknown dependency type")
	}
	// Renderings are not accepted as wire values.
	if _, err := ParseDependency("requirements.txt"); err == nil {
		t.Error("expected error for rendered form")
	}
}
