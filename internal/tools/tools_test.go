package tools

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jkaninda/coderun/internal/compile"
	"github.com/jkaninda/coderun/internal/sandbox"
)

type fakeRunner struct {
	result  *sandbox.ExecutionResult
	err     error
	calls   [][]string
	callIDs []string
}

func (f *fakeRunner) Run(ctx context.Context, args []string) (*sandbox.ExecutionResult, error) {
	f.calls = append(f.calls, args)
	f.callIDs = append(f.callIDs, sandbox.CallIDFromContext(ctx))
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return sandbox.NewExecutionResult("", "", 0), nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content items = %d, want 1", len(res.Content))
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

func TestRunScriptA_Success(t *testing.T) {
	runner := &fakeRunner{result: sandbox.NewExecutionResult("hi\n", "", 0)}
	tool := NewRunScriptA("", runner, nil)

	res, err := tool.Handle(context.Background(), callRequest("run_scripta", map[string]any{
		"dependency_type": "RequirementsTxt",
		"project_dir":     "/p",
		"entry_file":      "main.py",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Error("IsError should be false for exit 0")
	}
	if got := textOf(t, res); got != `{"stdout":"hi\n","stderr":"","is_error":false}` {
		t.Errorf("content = %s", got)
	}

	want := []string{"run", "--rm", "-v", "/p:/usr/src/app", "-e", "TYPE=requirements.txt", "-w", "/usr/src/app", "scripta-no-root", "main.py"}
	if len(runner.calls) != 1 || !slices.Equal(runner.calls[0], want) {
		t.Errorf("args = %q, want %q", runner.calls, want)
	}
	if runner.callIDs[0] == "" {
		t.Error("runner context should carry a call ID")
	}
}

func TestRunScriptB_NonZeroExit(t *testing.T) {
	runner := &fakeRunner{result: sandbox.NewExecutionResult("", "Error: Cannot find module\n", 1)}
	tool := NewRunScriptB("", runner, nil)

	res, err := tool.Handle(context.Background(), callRequest("run_scriptb", map[string]any{
		"project_dir": "/p",
		"entry_file":  "index.js",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Error("IsError should be true for non-zero exit")
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(textOf(t, res)), &out); err != nil {
		t.Fatalf("content is not JSON: %v", err)
	}
	if out["is_error"] != true || out["stderr"] != "Error: Cannot find module\n" {
		t.Errorf("content = %v", out)
	}
	if got := runner.calls[0][5]; got != "TYPE=default" {
		t.Errorf("env = %q, want TYPE=default", got)
	}
}

func TestRunSystemsC_Test(t *testing.T) {
	runner := &fakeRunner{}
	tool := NewRunSystemsC("registry.local/rust:1", runner, nil)

	_, err := tool.Handle(context.Background(), callRequest("run_systemsc", map[string]any{
		"execution_type": "test",
		"project_dir":    "/p",
		"entry_file":     "src/main.rs",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"run", "--rm", "-v", "/p:/usr/src/app", "-w", "/usr/src/app", "registry.local/rust:1", "cargo", "test"}
	if !slices.Equal(runner.calls[0], want) {
		t.Errorf("args = %q, want %q", runner.calls[0], want)
	}
}

func TestHandle_Faults(t *testing.T) {
	tests := []struct {
		name string
		tool Tool
		args map[string]any
		want error
	}{
		{"scripta missing project_dir", NewRunScriptA("", nil, nil), map[string]any{"entry_file": "main.py"}, ErrInvalidInput},
		{"scripta missing entry_file", NewRunScriptA("", nil, nil), map[string]any{"project_dir": "/p"}, compile.ErrMissingEntryFile},
		{"scripta empty entry_file", NewRunScriptA("", nil, nil), map[string]any{"project_dir": "/p", "entry_file": ""}, compile.ErrMissingEntryFile},
		{"scriptb empty entry_file", NewRunScriptB("", nil, nil), map[string]any{"project_dir": "/p", "entry_file": ""}, compile.ErrMissingEntryFile},
		{"scripta unknown dependency", NewRunScriptA("", nil, nil), map[string]any{"project_dir": "/p", "entry_file": "m.py", "dependency_type": "pip"}, ErrInvalidInput},
		{"scriptb wrong type", NewRunScriptB("", nil, nil), map[string]any{"project_dir": 42, "entry_file": "i.js"}, ErrInvalidInput},
		{"scriptb rendered enum", NewRunScriptB("", nil, nil), map[string]any{"project_dir": "/p", "entry_file": "i.js", "dependency_type": "npm"}, ErrInvalidInput},
		{"systemsc missing execution_type", NewRunSystemsC("", nil, nil), map[string]any{"project_dir": "/p"}, ErrInvalidInput},
		{"systemsc unknown execution_type", NewRunSystemsC("", nil, nil), map[string]any{"project_dir": "/p", "execution_type": "build"}, ErrInvalidInput},
		{"systemsc no arguments", NewRunSystemsC("", nil, nil), nil, ErrInvalidInput},
		{"path not text", NewRunSystemsC("", nil, nil), map[string]any{"project_dir": "/p\x00", "execution_type": "run"}, compile.ErrPathNotText},
		{"flag-like project_dir", NewRunSystemsC("", nil, nil), map[string]any{"project_dir": "-e", "execution_type": "run"}, compile.ErrPathNotText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.tool.Handle(context.Background(), callRequest(tt.tool.Name(), tt.args))
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if res != nil {
				t.Error("faults should not produce a result envelope")
			}
		})
	}
}

func TestHandle_RunnerFault(t *testing.T) {
	runner := &fakeRunner{err: sandbox.ErrSpawnFailed}
	_, err := NewRunSystemsC("", runner, nil).Handle(context.Background(), callRequest("run_systemsc", map[string]any{
		"execution_type": "run",
		"project_dir":    "/p",
	}))
	if !errors.Is(err, sandbox.ErrSpawnFailed) {
		t.Fatalf("error = %v, want ErrSpawnFailed", err)
	}
}

func TestHandle_DistinctCallIDs(t *testing.T) {
	runner := &fakeRunner{}
	tool := NewRunSystemsC("", runner, nil)
	req := callRequest("run_systemsc", map[string]any{"execution_type": "run", "project_dir": "/p"})
	for i := 0; i < 2; i++ {
		if _, err := tool.Handle(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if runner.callIDs[0] == runner.callIDs[1] {
		t.Errorf("call IDs should differ, both %q", runner.callIDs[0])
	}
}

func TestSupportedLanguages(t *testing.T) {
	res, err := SupportedLanguages{}.Handle(context.Background(), callRequest("get_supported_languages", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Error("languages result should not be an error")
	}
	if got := textOf(t, res); got != `["scripta","scriptb","systemsc"]` {
		t.Errorf("languages = %s", got)
	}
}

func TestResultFromExecution_ContentUnchangedByFlag(t *testing.T) {
	ok, _ := ResultFromExecution(&sandbox.ExecutionResult{Stdout: "x", IsError: false})
	bad, _ := ResultFromExecution(&sandbox.ExecutionResult{Stdout: "x", IsError: true, ExitCode: 2})

	if ok.IsError || !bad.IsError {
		t.Errorf("IsError flags = %v/%v", ok.IsError, bad.IsError)
	}
	if got := textOf(t, bad); got != `{"stdout":"x","stderr":"","is_error":true}` {
		t.Errorf("error content = %s", got)
	}
}

// --- Registry ---

func TestDefaultRegistry(t *testing.T) {
	reg := NewDefaultRegistry(Images{}, &fakeRunner{}, nil)

	want := []string{"get_supported_languages", "run_scripta", "run_scriptb", "run_systemsc"}
	if got := reg.List(); !slices.Equal(got, want) {
		t.Errorf("List() = %q, want %q", got, want)
	}
	if reg.Get("run_scripta") == nil {
		t.Error("Get(run_scripta) returned nil")
	}
	if reg.Get("run_python") != nil {
		t.Error("Get of unknown tool should return nil")
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(SupportedLanguages{})
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	reg.Register(SupportedLanguages{})
}

func TestDefinitions_Schema(t *testing.T) {
	tests := []struct {
		tool     Tool
		required []string
		enumProp string
		enum     []string
	}{
		{NewRunScriptA("", nil, nil), []string{"project_dir", "entry_file"}, "dependency_type", []string{"RequirementsTxt", "Uv", "Default"}},
		{NewRunScriptB("", nil, nil), []string{"project_dir", "entry_file"}, "dependency_type", []string{"Npm", "Yarn", "Default"}},
		{NewRunSystemsC("", nil, nil), []string{"execution_type", "project_dir"}, "execution_type", []string{"run", "test"}},
	}
	for _, tt := range tests {
		t.Run(tt.tool.Name(), func(t *testing.T) {
			def := tt.tool.Definition()
			if def.Name != tt.tool.Name() {
				t.Errorf("definition name = %q", def.Name)
			}
			for _, r := range tt.required {
				if !slices.Contains(def.InputSchema.Required, r) {
					t.Errorf("%s should be required, got %q", r, def.InputSchema.Required)
				}
			}
			if slices.Contains(def.InputSchema.Required, "dependency_type") {
				t.Error("dependency_type must stay optional")
			}

			// Compare through JSON to stay independent of the schema's Go types.
			data, err := json.Marshal(def.InputSchema.Properties[tt.enumProp])
			if err != nil {
				t.Fatalf("marshal property: %v", err)
			}
			var prop struct {
				Enum []string `json:"enum"`
			}
			if err := json.Unmarshal(data, &prop); err != nil {
				t.Fatalf("unmarshal property: %v", err)
			}
			if !slices.Equal(prop.Enum, tt.enum) {
				t.Errorf("enum = %q, want %q", prop.Enum, tt.enum)
			}
		})
	}
}
