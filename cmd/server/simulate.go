package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/utils"
)

func newSimulateCmd() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a window through the predictor and print each step",
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(start, end)
			if err != nil {
				return err
			}

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

			return runSimulate(ctx, a, window, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "window start (e.g. \"2021-01-01 00:00:00\")")
	cmd.Flags().StringVar(&end, "end", "", "window end")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func parseWindow(start, end string) (models.Window, error) {
	s, err := utils.ParseTimestamp(start)
	if err != nil {
		return models.Window{}, fmt.Errorf("--start: %w", err)
	}
	e, err := utils.ParseTimestamp(end)
	if err != nil {
		return models.Window{}, fmt.Errorf("--end: %w", err)
	}
	return models.Window{Start: s, End: e}, nil
}

// runSimulate prints one JSON line per step followed by the final statistics.
func runSimulate(ctx context.Context, a *app, window models.Window, out io.Writer) error {
	encoder := json.NewEncoder(out)
	stats, err := a.simulation.Run(ctx, window, func(offset int, pred *models.Prediction) error {
		if pred.IsEndOfStream() {
			return nil
		}
		return encoder.Encode(struct {
			Offset int `json:"offset"`
			*models.Prediction
		}{offset, pred})
	})
	if err != nil {
		return err
	}
	a.std.WithComponent("simulate").Info("Simulation completed",
		"total", stats.TotalPredictions,
		"pass", stats.PassCount,
		"fail", stats.FailCount,
		"average_confidence", stats.AverageConfidence,
	)
	return encoder.Encode(struct {
		Stats models.RunningStats `json:"stats"`
	}{stats})
}
