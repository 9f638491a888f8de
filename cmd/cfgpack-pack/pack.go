package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Arsievert/cfgpack"
)

// runPack compiles a text or JSON schema document into the binary
// schema wire format the runtime parser expects.
func runPack(cmd *cobra.Command, args []string) {
	inputPath, outputPath := args[0], args[1]

	data, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIOErr)
	}

	schema, _, _, err := parseSchemaFile(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitSemErr)
	}

	buf := make([]byte, binaryEncodeBufferSize(schema))
	n, err := cfgpack.EncodeBinarySchema(schema, buf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitSemErr)
	}

	if err := os.WriteFile(outputPath, buf[:n], 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIOErr)
	}
	os.Exit(exitOK)
}

// binaryEncodeBufferSize bounds the buffer EncodeBinarySchema needs: a
// fixed per-entry header overhead plus each entry's worst-case
// name/type/default payload.
func binaryEncodeBufferSize(schema *cfgpack.Schema) int {
	const perEntryOverhead = 64
	size := 128
	for range schema.Entries {
		size += perEntryOverhead + cfgpack.NameMax + cfgpack.StrMax
	}
	return size
}

func runSchema(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIOErr)
	}
	schema, _, _, err := parseSchemaFile(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitSemErr)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tversion %d\n", schema.MapName, schema.Version)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tHAS_DEFAULT")
	for _, e := range schema.Entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%v\n", e.ID, e.Name, e.Type, e.HasDefault)
	}
	w.Flush()
	os.Exit(exitOK)
}
