package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
	"sigs.k8s.io/yaml"
)

const (
	defaultLogConfigPath = "config/logging.yaml"
	logConfigPathEnvVar  = "TSBENCH_LOG_CONFIG"
	RFC3339Milli         = "2006-01-02T15:04:05.000Z07:00"
)

// MustConfigureApplicationLogging sets up logging suitable for an application. Logging configuration is loaded from
// a filepath given by the TSBENCH_LOG_CONFIG environmental variable or from config/logging.yaml if this var is unset.
// Note that this function will immediately shut down the application if it fails.
func MustConfigureApplicationLogging() {
	err := ConfigureApplicationLogging(prometheus.DefaultRegisterer)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error initializing logging: "+err.Error())
		os.Exit(1)
	}
}

// ConfigureApplicationLogging sets up logging suitable for an application. A missing config file is not an error;
// the console defaults are used instead. If registerer is non-nil, log lines are counted per level.
func ConfigureApplicationLogging(registerer prometheus.Registerer) error {
	zerolog.TimeFieldFormat = RFC3339Milli
	zerolog.CallerMarshalFunc = shortCallerEncoder

	configPath := getEnv(logConfigPathEnvVar, defaultLogConfigPath)
	logConfig, err := readConfig(configPath)
	if err != nil {
		return err
	}

	var writers []io.Writer
	consoleLogger, err := createConsoleLogger(logConfig)
	if err != nil {
		return err
	}
	writers = append(writers, consoleLogger)

	if logConfig.File.Enabled {
		fileLogger, err := createFileLogger(logConfig)
		if err != nil {
			return err
		}
		writers = append(writers, fileLogger)
	}

	multiWriter := zerolog.MultiLevelWriter(writers...)
	logger := zerolog.New(multiWriter).With().Timestamp().Logger()
	if registerer != nil {
		hook, err := NewPrometheusHook(registerer)
		if err != nil {
			return err
		}
		logger = logger.Hook(hook)
	}

	ReplaceStdLogger(FromZerolog(logger))
	return nil
}

// ApplyQuietMode suppresses everything below warn, regardless of the configured sink levels.
func ApplyQuietMode() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

func readConfig(configPath string) (Config, error) {
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading log config %s", configPath)
	}
	logConfig := defaultConfig()
	if err := yaml.Unmarshal(data, &logConfig); err != nil {
		return Config{}, errors.Wrapf(err, "parsing log config %s", configPath)
	}
	if err := validate(logConfig); err != nil {
		return Config{}, err
	}
	return logConfig, nil
}

func createFileLogger(logConfig Config) (*FilteredLevelWriter, error) {
	level, err := parseLogLevel(logConfig.File.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer
	if logConfig.File.Rotation.Enabled {
		out = &lumberjack.Logger{
			Filename:   logConfig.File.LogFile,
			MaxSize:    logConfig.File.Rotation.MaxSizeMb,
			MaxBackups: logConfig.File.Rotation.MaxBackups,
			MaxAge:     logConfig.File.Rotation.MaxAgeDays,
			Compress:   logConfig.File.Rotation.Compress,
		}
	} else {
		f, err := os.OpenFile(logConfig.File.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Wrapf(err, "opening log file %s", logConfig.File.LogFile)
		}
		out = f
	}

	if logConfig.File.Format == FormatJSON {
		return createJsonWriter(out, level), nil
	}
	return createConsoleWriter(out, level, FormatText), nil
}

func createConsoleLogger(logConfig Config) (*FilteredLevelWriter, error) {
	level, err := parseLogLevel(logConfig.Console.Level)
	if err != nil {
		return nil, err
	}
	if logConfig.Console.Format == FormatJSON {
		return createJsonWriter(os.Stdout, level), nil
	}
	return createConsoleWriter(os.Stdout, level, logConfig.Console.Format), nil
}

func createJsonWriter(out io.Writer, level zerolog.Level) *FilteredLevelWriter {
	return &FilteredLevelWriter{
		level:  level,
		writer: out,
	}
}

func createConsoleWriter(out io.Writer, level zerolog.Level, format LogFormat) *FilteredLevelWriter {
	return &FilteredLevelWriter{
		level: level,
		writer: zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: RFC3339Milli,
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%s", i))
			},
			FormatCaller: func(i interface{}) string {
				return filepath.Base(fmt.Sprintf("%s", i))
			},
			NoColor: format == FormatText,
		},
	}
}

// FilteredLevelWriter drops every event below level before handing it to the wrapped writer.
type FilteredLevelWriter struct {
	writer io.Writer
	level  zerolog.Level
}

func (w *FilteredLevelWriter) Write(p []byte) (int, error) {
	return w.writer.Write(p)
}

func (w *FilteredLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= w.level {
		return w.writer.Write(p)
	}
	return len(p), nil
}

func shortCallerEncoder(_ uintptr, file string, line int) string {
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	file = short
	return file + ":" + strconv.Itoa(line)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
