// Command cfgpack-pack compiles a text or JSON schema document into the
// binary schema wire format, and can inspect an already-parsed schema
// as a table.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	exitOK      = 0
	exitUsage   = 1
	exitIOErr   = 2
	exitSemErr  = 3
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "cfgpack-pack",
		Short: "A configuration schema packer",
		Long:  "Compiles a cfgpack schema document into the binary schema wire format",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Usage()
			os.Exit(exitUsage)
		},
	}

	var packCmd = &cobra.Command{
		Use:   "pack <input> <output>",
		Short: "Compile a text or JSON schema into the binary schema format",
		Args:  cobra.ExactArgs(2),
		Run:   runPack,
	}

	var schemaCmd = &cobra.Command{
		Use:   "schema <schema>",
		Short: "Print a parsed schema as a table",
		Args:  cobra.ExactArgs(1),
		Run:   runSchema,
	}

	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(schemaCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
}
