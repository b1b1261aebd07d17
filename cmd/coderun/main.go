// coderun: MCP tool server that runs project code inside per-language containers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coderun",
	Short: "coderun: sandboxed code execution tools over MCP.",
	Long: `coderun exposes a small, fixed menu of MCP tools to an LLM-facing client.
Each tool mounts a host project directory into a pre-built language image,
runs it with the container CLI, and returns the captured stdout, stderr and
failure flag as JSON.`,
	RunE:          runServe, // Default to serving over the configured transport.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, callCmd, doctorCmd, languagesCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
