package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.csv>",
		Short: "Replace the resident dataset with a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, logger, std, shutdownTelemetry, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(context.Background())

			a, err := newApp(ctx, cfg, logger, std)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			return runIngest(ctx, a, args[0], cmd.OutOrStdout())
		},
	}
}

func runIngest(ctx context.Context, a *app, path string, out io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	start := time.Now()
	summary, err := a.ingestion.Ingest(ctx, file, filepath.Base(path))
	if err != nil {
		return err
	}
	a.std.LogDatabaseOperation("replace", "dataset_records", time.Since(start).Milliseconds(), int64(summary.TotalRecords))
	a.std.LogBusinessEvent("dataset_ingested", map[string]interface{}{
		"file_name":  summary.FileName,
		"records":    summary.TotalRecords,
		"pass_rate":  summary.PassRate,
		"generation": summary.Generation,
	})

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}
