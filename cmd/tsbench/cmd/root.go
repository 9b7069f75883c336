package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tsbench/tsbench/internal/common"
	"github.com/tsbench/tsbench/internal/common/logging"
	"github.com/tsbench/tsbench/internal/tsbench/configuration"
)

const (
	CustomConfigLocation  string = "config"
	defaultConfigLocation string = "./config"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tsbench",
		SilenceUsage: true,
		Short:        "Load tester for time-series databases",
		Long: `Load tester for time-series databases.

Defaults are read from ./config/config.yaml. Further config files passed with
--config are merged on top in order, then TSBENCH_ prefixed environment
variables are applied (nested keys joined with _, e.g. TSBENCH_DATABASE_TYPE).`,
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to a test configuration file (for multiple config files repeat this arg or separate paths with commas)")
	common.BindCommandlineArguments(cmd.PersistentFlags())

	cmd.AddCommand(
		runCmd(),
		estimateCmd(),
		versionCmd(),
	)

	return cmd
}

func loadConfig() (configuration.TestConfig, error) {
	config := configuration.Default()
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)

	if _, err := common.LoadConfig(&config, defaultConfigLocation, userSpecifiedConfigs); err != nil {
		return config, err
	}
	if config.QuietMode {
		logging.ApplyQuietMode()
	}
	return config, config.Validate()
}
