package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsbench/tsbench/internal/common/app"
	"github.com/tsbench/tsbench/internal/common/logging"
	"github.com/tsbench/tsbench/internal/tsbench/estimation"
	"github.com/tsbench/tsbench/internal/tsbench/orchestrator"
)

func runCmd() *cobra.Command {
	var skipConfirmation bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark against the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			est, err := estimation.Estimate(config)
			if err != nil {
				return err
			}
			if estimation.ShouldPrompt(est) && !skipConfirmation {
				proceed, err := estimation.DisplayEstimationAndConfirm(est, os.Stdin, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if !proceed {
					logging.Info("Run cancelled by user")
					return nil
				}
			}

			runner := orchestrator.NewRunner(config, orchestrator.WithOutput(cmd.OutOrStdout()))
			if _, err := runner.Run(app.CreateContextWithShutdown()); err != nil {
				return fmt.Errorf("benchmark failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&skipConfirmation, "yes", "y", false, "Skip the confirmation prompt for large runs")
	return cmd
}
