// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-coordinator/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <task-id>",
	Short: "Export a task with its report history to YAML or JSON",
	Long: `Export writes the full persisted record of a task: the query, status,
current report, every earlier report version, critique feedback, and the
agent audit log. Output goes to stdout unless --output is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", store.FormatYAML, "export format: yaml or json")
	exportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != store.FormatYAML && format != store.FormatJSON {
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	if err := st.Export(context.Background(), args[0], format, out); err != nil {
		return err
	}
	if out != os.Stdout {
		fmt.Fprintf(os.Stderr, "Exported task %s to %s\n", args[0], out.Name())
	}
	return nil
}
