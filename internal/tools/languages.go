package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jkaninda/coderun/internal/sandbox"
)

// Languages are the tags reported by get_supported_languages, one per recipe.
var Languages = []string{"scripta", "scriptb", "systemsc"}

// SupportedLanguages reports the closed set of language tags.
type SupportedLanguages struct{}

func (SupportedLanguages) Name() string { return "get_supported_languages" }

func (t SupportedLanguages) Definition() mcp.Tool {
	return mcp.NewTool(t.Name(),
		mcp.WithDescription("Get the supported languages, as a JSON array of language tags."),
	)
}

func (SupportedLanguages) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(Languages)
	if err != nil {
		return nil, fmt.Errorf("encoding languages: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Images names the container image per recipe. Empty fields select the recipe default.
type Images struct {
	ScriptA  string
	ScriptB  string
	SystemsC string
}

// NewDefaultRegistry registers the full coderun tool menu against sb.
func NewDefaultRegistry(images Images, sb sandbox.Runner, logger *slog.Logger) *Registry {
	reg := NewRegistry()
	reg.Register(NewRunScriptA(images.ScriptA, sb, logger))
	reg.Register(NewRunScriptB(images.ScriptB, sb, logger))
	reg.Register(NewRunSystemsC(images.SystemsC, sb, logger))
	reg.Register(SupportedLanguages{})
	return reg
}
