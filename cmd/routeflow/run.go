package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Lllllllleong/routeingest/internal/app"
	"github.com/Lllllllleong/routeingest/internal/models"
)

var rebuild bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one batch of the work queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(cloud); err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg, mode())
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Coordinator.Run(cmd.Context(), models.RunRequest{
			Source:       models.TriggerOperator,
			RebuildQueue: rebuild,
		})
		if report != nil {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(report); encErr != nil {
				zap.L().Warn("failed to print report", zap.Error(encErr))
			}
		}
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&rebuild, "rebuild", false, "rebuild the work queue before processing")
	rootCmd.AddCommand(runCmd)
}
