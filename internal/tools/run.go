package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jkaninda/coderun/internal/compile"
	"github.com/jkaninda/coderun/internal/compile/scripta"
	"github.com/jkaninda/coderun/internal/compile/scriptb"
	"github.com/jkaninda/coderun/internal/compile/systemsc"
	"github.com/jkaninda/coderun/internal/sandbox"
)

const (
	projectDirDescription = "Path to the project. This should be a folder/directory, not a file"
	scriptADepDescription = "If using uv or requirements.txt. If no dependencies, don't specify"
	scriptBDepDescription = "If using npm or yarn. If no dependencies, don't specify"
	executionDescription  = `If running tests or running the app. Use "run" for executing code and "test" for testing code.`
)

type scriptAInput struct {
	DependencyType *scripta.Dependency `json:"dependency_type,omitempty"`
	ProjectDir     string              `json:"project_dir"`
	EntryFile      *string             `json:"entry_file,omitempty"`
}

type scriptBInput struct {
	DependencyType *scriptb.Dependency `json:"dependency_type,omitempty"`
	ProjectDir     string              `json:"project_dir"`
	EntryFile      *string             `json:"entry_file,omitempty"`
}

type systemsCInput struct {
	ExecutionType *systemsc.Execution `json:"execution_type"`
	ProjectDir    string              `json:"project_dir"`
}

// runner is the plumbing shared by the three run_* tools.
type runner struct {
	name   string
	image  string
	sb     sandbox.Runner
	logger *slog.Logger
}

func newRunner(name, image string, sb sandbox.Runner, logger *slog.Logger) runner {
	if logger == nil {
		logger = slog.Default()
	}
	return runner{name: name, image: image, sb: sb, logger: logger}
}

func (r runner) Name() string { return r.name }

// begin tags the call with a fresh correlation ID.
func (r runner) begin(ctx context.Context) (context.Context, *slog.Logger) {
	callID := uuid.NewString()
	return sandbox.ContextWithCallID(ctx, callID), r.logger.With(
		slog.String("tool", r.name),
		slog.String("call_id", callID),
	)
}

// fault logs and returns a protocol fault.
func (r runner) fault(ctx context.Context, logger *slog.Logger, err error) (*mcp.CallToolResult, error) {
	logger.WarnContext(ctx, "tool call faulted", slog.String("error", err.Error()))
	return nil, err
}

// execute runs svc and adapts its result to the tool envelope.
func (r runner) execute(ctx context.Context, logger *slog.Logger, svc compile.Service, projectDir string, entryFile *string) (*mcp.CallToolResult, error) {
	logger.InfoContext(ctx, "tool call started", slog.String("project_dir", projectDir))

	res, err := svc.CompileProject(ctx, projectDir, entryFile)
	if err != nil {
		return r.fault(ctx, logger, err)
	}

	logger.InfoContext(ctx, "tool call completed",
		slog.Bool("is_error", res.IsError),
		slog.Int("exit_code", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)
	return ResultFromExecution(res)
}

func bind(req mcp.CallToolRequest, target any) error {
	if err := req.BindArguments(target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func requireProjectDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: project_dir is required", ErrInvalidInput)
	}
	return nil
}

func enumValues[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// --- run_scripta ---

// RunScriptA runs a Python-family project.
type RunScriptA struct{ runner }

// NewRunScriptA creates the run_scripta tool. An empty image selects scripta.DefaultImage.
func NewRunScriptA(image string, sb sandbox.Runner, logger *slog.Logger) *RunScriptA {
	return &RunScriptA{newRunner("run_scripta", image, sb, logger)}
}

func (t *RunScriptA) Definition() mcp.Tool {
	return mcp.NewTool(t.name,
		mcp.WithDescription("Run ScriptA (Python family) code from a project directory inside its sandbox image."),
		mcp.WithString("dependency_type",
			mcp.Description(scriptADepDescription),
			mcp.Enum(enumValues(scripta.Dependencies)...),
		),
		mcp.WithString("project_dir", mcp.Required(), mcp.Description(projectDirDescription)),
		mcp.WithString("entry_file", mcp.Required(),
			mcp.Description("File name within the project to execute. Eg, `main.py`"),
		),
	)
}

func (t *RunScriptA) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := t.begin(ctx)

	var in scriptAInput
	if err := bind(req, &in); err != nil {
		return t.fault(ctx, logger, err)
	}
	if err := requireProjectDir(in.ProjectDir); err != nil {
		return t.fault(ctx, logger, err)
	}

	svc := scripta.New(in.DependencyType, t.image, t.sb)
	return t.execute(ctx, logger, svc, in.ProjectDir, in.EntryFile)
}

// --- run_scriptb ---

// RunScriptB runs a JavaScript-family project.
type RunScriptB struct{ runner }

// NewRunScriptB creates the run_scriptb tool. An empty image selects scriptb.DefaultImage.
func NewRunScriptB(image string, sb sandbox.Runner, logger *slog.Logger) *RunScriptB {
	return &RunScriptB{newRunner("run_scriptb", image, sb, logger)}
}

func (t *RunScriptB) Definition() mcp.Tool {
	return mcp.NewTool(t.name,
		mcp.WithDescription("Run ScriptB (JavaScript family) code from a project directory inside its sandbox image."),
		mcp.WithString("dependency_type",
			mcp.Description(scriptBDepDescription),
			mcp.Enum(enumValues(scriptb.Dependencies)...),
		),
		mcp.WithString("project_dir", mcp.Required(), mcp.Description(projectDirDescription)),
		mcp.WithString("entry_file", mcp.Required(),
			mcp.Description("File name within the project to execute. Eg, `index.js`"),
		),
	)
}

func (t *RunScriptB) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := t.begin(ctx)

	var in scriptBInput
	if err := bind(req, &in); err != nil {
		return t.fault(ctx, logger, err)
	}
	if err := requireProjectDir(in.ProjectDir); err != nil {
		return t.fault(ctx, logger, err)
	}

	svc := scriptb.New(in.DependencyType, t.image, t.sb)
	return t.execute(ctx, logger, svc, in.ProjectDir, in.EntryFile)
}

// --- run_systemsc ---

// RunSystemsC builds and runs, or tests, a Rust-family project with cargo.
type RunSystemsC struct{ runner }

// NewRunSystemsC creates the run_systemsc tool. An empty image selects systemsc.DefaultImage.
func NewRunSystemsC(image string, sb sandbox.Runner, logger *slog.Logger) *RunSystemsC {
	return &RunSystemsC{newRunner("run_systemsc", image, sb, logger)}
}

func (t *RunSystemsC) Definition() mcp.Tool {
	return mcp.NewTool(t.name,
		mcp.WithDescription("Run or test SystemsC (Rust family) code from a project directory with cargo inside its sandbox image."),
		mcp.WithString("execution_type", mcp.Required(),
			mcp.Description(executionDescription),
			mcp.Enum(enumValues(systemsc.Executions)...),
		),
		mcp.WithString("project_dir", mcp.Required(), mcp.Description(projectDirDescription)),
	)
}

func (t *RunSystemsC) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := t.begin(ctx)

	var in systemsCInput
	if err := bind(req, &in); err != nil {
		return t.fault(ctx, logger, err)
	}
	if in.ExecutionType == nil {
		return t.fault(ctx, logger, fmt.Errorf("%w: execution_type is required", ErrInvalidInput))
	}
	if err := requireProjectDir(in.ProjectDir); err != nil {
		return t.fault(ctx, logger, err)
	}

	svc := systemsc.New(*in.ExecutionType, t.image, t.sb)
	return t.execute(ctx, logger, svc, in.ProjectDir, nil)
}

var (
	_ Tool = (*RunScriptA)(nil)
	_ Tool = (*RunScriptB)(nil)
	_ Tool = (*RunSystemsC)(nil)
)
