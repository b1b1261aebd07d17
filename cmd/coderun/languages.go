package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jkaninda/coderun/internal/tools"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "Print the supported language tags",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(tools.Languages, "\n"))
	},
}
