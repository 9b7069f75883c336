package common

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	commonconfig "github.com/tsbench/tsbench/internal/common/config"
	"github.com/tsbench/tsbench/internal/common/logging"
)

const envPrefix = "TSBENCH"

// BindCommandlineArguments makes every registered pflag visible to viper.
func BindCommandlineArguments(flags *pflag.FlagSet) {
	if err := viper.BindPFlags(flags); err != nil {
		logging.WithStacktrace(err).Error("could not bind command line arguments")
		os.Exit(-1)
	}
}

// LoadConfig reads config.yaml from defaultPath (if present), merges each of overrideConfigs on top in order,
// applies TSBENCH_ prefixed environment variables and unmarshals the result into config. Fields that no source
// mentions keep the value config already holds.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string) (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrapf(err, "reading default config from %s", defaultPath)
		}
		logging.Debugf("no default config found in %s", defaultPath)
	} else {
		logging.Infof("Read base config from %s", v.ConfigFileUsed())
	}

	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "merging config from %s", overrideConfig)
		}
		logging.Infof("Merged config from %s", overrideConfig)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.Unmarshal(config, commonconfig.CustomHooks...); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	return v, nil
}

// MustLoadConfig is LoadConfig that exits the process on failure.
func MustLoadConfig(config interface{}, defaultPath string, overrideConfigs []string) *viper.Viper {
	v, err := LoadConfig(config, defaultPath, overrideConfigs)
	if err != nil {
		logging.WithStacktrace(err).Error("failed to load configuration")
		os.Exit(-1)
	}
	return v
}
