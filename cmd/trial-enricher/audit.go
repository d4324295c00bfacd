package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trial-enricher/internal/store"
	"github.com/pdiddy/trial-enricher/pkg/types"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Read the adjudication audit log",
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit log entries as JSONL or an HTML report",
	Long: `Export writes adjudication log entries in append order. JSONL keeps
every field, including the raw model response; the HTML report is a table
meant for reviewers. Filter by run or outcome with --run-id and --status.`,
	RunE: runAuditExport,
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	runID, _ := cmd.Flags().GetString("run-id")
	status, _ := cmd.Flags().GetString("status")

	var write func(io.Writer, []types.AdjudicationLogEntry) error
	switch format {
	case "jsonl", "":
		write = store.WriteAuditJSONL
	case "html":
		write = store.WriteAuditHTML
	default:
		return fmt.Errorf("unsupported format %q: use jsonl or html", format)
	}
	switch types.AuditStatus(status) {
	case "", types.AuditResolved, types.AuditRejected, types.AuditUnresolved:
	default:
		return fmt.Errorf("unsupported status %q: use resolved, rejected, or unresolved", status)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.AuditEntries(context.Background(), store.AuditFilter{
		RunID:  runID,
		Status: types.AuditStatus(status),
	})
	if err != nil {
		return err
	}

	if output == "" || output == "-" {
		return write(os.Stdout, entries)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if err := write(f, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %d audit entries to %s\n", len(entries), output)
	return nil
}

func init() {
	auditExportCmd.Flags().String("format", "jsonl", "export format: jsonl or html")
	auditExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	auditExportCmd.Flags().String("run-id", "", "only entries from this run")
	auditExportCmd.Flags().String("status", "", "only entries with this outcome: resolved, rejected, unresolved")

	auditCmd.AddCommand(auditExportCmd)
	rootCmd.AddCommand(auditCmd)
}
