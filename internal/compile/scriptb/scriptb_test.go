package scriptb

import (
	"encoding/json"
	"testing"
)

func depPtr(d Dependency) *Dependency { return &d }

func TestArgs_Npm(t *testing.T) {
	args, err := New(depPtr(Npm), "", nil).Args("/mock/path", "index.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[3] != "/mock/path:/usr/src/app" {
		t.Errorf("mount = %q", args[3])
	}
	if args[5] != "TYPE=npm" {
		t.Errorf("env = %q, want TYPE=npm", args[5])
	}
	if args[9] != "index.js" {
		t.Errorf("entry = %q, want index.js", args[9])
	}
	if len(args) != 10 {
		t.Errorf("len(args) = %d, want 10", len(args))
	}
}

func TestArgs_Yarn(t *testing.T) {
	args, err := New(depPtr(Yarn), "", nil).Args("/p", "index.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"run", "--rm", "-v", "/p:/usr/src/app", "-e", "TYPE=yarn", "-w", "/usr/src/app", "scriptb-no-root", "index.js"}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestArgs_Default(t *testing.T) {
	args, err := New(nil, "", nil).Args("/mock/path", "index.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[5] != "TYPE=default" {
		t.Errorf("env = %q, want TYPE=default", args[5])
	}
	if len(args) != 10 {
		t.Errorf("len(args) = %d, want 10", len(args))
	}
}

func TestDependency_UnmarshalJSON(t *testing.T) {
	var in struct {
		Dep *Dependency `json:"dependency_type"`
	}
	if err := json.Unmarshal([]byte(`{"dependency_type":"Yarn"}`), &in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Dep == nil || *in.Dep != Yarn {
		t.Errorf("dep = %v, want Yarn", in.Dep)
	}
	if err := json.Unmarshal([]byte(`{"dependency_type":"pnpm"}`), &in); err == nil {
		t.Error("expected error for unknown dependency type")
	}
}
