package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/coderun/internal/config"
	"github.com/jkaninda/coderun/internal/mcpclient"
)

var (
	callURL      string
	callCommand  string
	callArgs     []string
	callJSONArgs string
	callHeaders  []string
	callEnv      []string
	callList     bool
	callTimeout  time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call [tool]",
	Short: "Call a tool on a coderun server as an MCP client",
	Long: `Connect to a coderun server, perform the MCP handshake, then list its
tools or invoke one and print the result text.

Without --url the server is spawned over stdio (by default this binary with
"serve --transport stdio").

Examples:
  coderun call --list
  coderun call get_supported_languages
  coderun call run_scripta --arg project_dir=/srv/app --arg entry_file=main.py
  coderun call run_systemsc --url http://localhost:8080/mcp --json '{"project_dir":"/srv/crate","execution_type":"test"}'

Exit status is non-zero when the tool reports an error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callURL, "url", "", "streamable HTTP endpoint (or CODERUN_URL env); empty = spawn over stdio")
	callCmd.Flags().StringVar(&callCommand, "command", "", "server command for stdio (default: this binary)")
	callCmd.Flags().StringArrayVar(&callArgs, "arg", nil, "tool argument as key=value (repeatable)")
	callCmd.Flags().StringVar(&callJSONArgs, "json", "", "tool arguments as a JSON object")
	callCmd.Flags().StringArrayVar(&callHeaders, "header", nil, "HTTP header as Name=Value (repeatable, $VARS expanded)")
	callCmd.Flags().StringArrayVar(&callEnv, "env", nil, "stdio server environment as KEY=VALUE (repeatable, $VARS expanded)")
	callCmd.Flags().BoolVar(&callList, "list", false, "list the server's tools instead of calling one")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 10*time.Minute, "overall timeout")
}

func runCall(cmd *cobra.Command, args []string) error {
	if !callList && len(args) == 0 {
		return fmt.Errorf("tool name is required (or use --list)")
	}

	cfg, err := clientConfig()
	if err != nil {
		return err
	}

	// Client-side logs stay quiet unless asked for.
	logger := newLogger(config.LoggingConfig{Level: envOr("CODERUN_LOG_LEVEL", "warn")}, os.Stderr)

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	client, err := mcpclient.Connect(ctx, cfg, version, logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	out := cmd.OutOrStdout()

	if callList {
		list, err := client.ListTools(ctx)
		if err != nil {
			return err
		}
		info := client.ServerInfo()
		fmt.Fprintf(out, "%s %s (protocol %s)\n", info.Name, info.Version, client.ProtocolVersion())
		for _, t := range list {
			fmt.Fprintf(out, "  %-24s %s\n", t.Name, t.Description)
		}
		return nil
	}

	toolArgs, err := mcpclient.ParseArgs(callArgs, callJSONArgs)
	if err != nil {
		return err
	}

	// A failed tool still prints its result; the error sets the exit status.
	res, err := client.Call(ctx, args[0], toolArgs)
	if res != nil {
		fmt.Fprintln(out, res.Text)
	}
	return err
}

// clientConfig builds the transport settings from flags.
func clientConfig() (mcpclient.Config, error) {
	url := envOr("CODERUN_URL", callURL)
	if url != "" {
		headers, err := parsePairs("header", callHeaders)
		if err != nil {
			return mcpclient.Config{}, err
		}
		return mcpclient.Config{Transport: "streamable_http", URL: url, Headers: headers}, nil
	}

	env, err := parsePairs("env", callEnv)
	if err != nil {
		return mcpclient.Config{}, err
	}
	command := callCommand
	if command == "" {
		self, err := os.Executable()
		if err != nil {
			return mcpclient.Config{}, fmt.Errorf("locating coderun binary: %w", err)
		}
		command = self
	}
	return mcpclient.Config{
		Transport: "stdio",
		Command:   command,
		Args:      []string{"serve", "--transport", "stdio"},
		Env:       env,
	}, nil
}

// parsePairs splits repeated Name=Value flag values into a map.
func parsePairs(kind string, pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%s %q is not Name=Value", kind, p)
		}
		out[name] = value
	}
	return out, nil
}
