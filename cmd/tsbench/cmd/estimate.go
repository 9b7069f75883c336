package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tsbench/tsbench/internal/tsbench/estimation"
)

func estimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate",
		Short: "Print the data volume and duration a run would produce, without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			est, err := estimation.Estimate(config)
			if err != nil {
				return err
			}
			estimation.Display(est, cmd.OutOrStdout())
			return nil
		},
	}
}
