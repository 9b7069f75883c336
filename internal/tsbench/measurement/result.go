package measurement

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tsbench/tsbench/internal/tsbench/configuration"
)

// SchemaVersion is bumped whenever the layout of TestResult changes.
const SchemaVersion = "1.0.0"

type TestResult struct {
	Metadata      Metadata                 `json:"metadata"`
	Configuration configuration.TestConfig `json:"configuration"`
	Results       Results                  `json:"results"`
}

type Metadata struct {
	RunID        string `json:"runId"`
	Timestamp    string `json:"timestamp"`
	Version      string `json:"version"`
	TestDuration string `json:"testDuration"`
}

type Results struct {
	CreateSchemaTime string            `json:"createSchemaTime"`
	Operations       []OperationResult `json:"operations"`
}

type OperationResult struct {
	Operation string `json:"operation"`
	Variant   string `json:"variant"`
	OperationStats
}

// BuildTestResult assembles the report of a finished run. Secrets in the configuration are redacted.
func BuildTestResult(runID uuid.UUID, config configuration.TestConfig, global *GlobalMetrics, completedAt time.Time) TestResult {
	operations := make([]OperationResult, 0, len(global.Operations))
	for _, key := range global.Keys() {
		operations = append(operations, OperationResult{
			Operation:      key.Kind.String(),
			Variant:        key.Variant,
			OperationStats: *global.Operations[key],
		})
	}
	return TestResult{
		Metadata: Metadata{
			RunID:        runID.String(),
			Timestamp:    completedAt.UTC().Format(time.RFC3339),
			Version:      SchemaVersion,
			TestDuration: global.Elapsed.String(),
		},
		Configuration: config.Redacted(),
		Results: Results{
			CreateSchemaTime: global.CreateSchemaTime.String(),
			Operations:       operations,
		},
	}
}

// ResultPath returns the path of a run's result file with the given extension.
func ResultPath(directory string, runID string, extension string) string {
	return filepath.Join(directory, "tsbench-"+runID+"."+extension)
}

func WriteTestResultToFile(result TestResult, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating result directory for %s", path)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
