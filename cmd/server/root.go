package main

import (
	"github.com/spf13/cobra"
)

const serviceName = "intelliinspect-go"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Sensor dataset ingestion, range validation and prediction replay service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(), newIngestCmd(), newSimulateCmd())
	return root
}
