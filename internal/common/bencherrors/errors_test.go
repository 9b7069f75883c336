package bencherrors

import (
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"nil":                       {nil, false},
		"ErrConfig":                 {&ErrConfig{Field: "loop"}, true},
		"ErrGeneration":             {&ErrGeneration{Message: "bad mode"}, true},
		"ErrOperation":              {&ErrOperation{Operation: "INGESTION", Cause: errors.New("boom")}, false},
		"ErrTimeout":                {&ErrTimeout{Operation: "TIME_RANGE"}, false},
		"pkg.Error => ErrConfig":    {errors.WithMessage(&ErrConfig{}, "foo"), true},
		"fmt wrap => ErrGeneration": {fmt.Errorf("worker 3: %w", NewGenerationError("mode %d", 7)), true},
		"plain error":               {errors.New("foo"), false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsFatal(tc.err))
		})
	}
}

func TestIsTimeout(t *testing.T) {
	err := errors.Wrap(&ErrTimeout{Operation: "AGG_RANGE", Timeout: time.Second, Elapsed: time.Second}, "query")
	assert.True(t, IsTimeout(err))
	assert.False(t, IsTimeout(&ErrOperation{Operation: "AGG_RANGE", Cause: errors.New("x")}))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t,
		`value "1:1" is invalid for field "operationProportion"; expected 4 weights`,
		NewConfigError("operationProportion", "1:1", "expected %d weights", 4).Error())
	assert.Equal(t,
		"operation AGG_RANGE (max_value) failed: boom",
		(&ErrOperation{Operation: "AGG_RANGE", Variant: "max_value", Cause: errors.New("boom")}).Error())
	assert.Equal(t, "workload generation failed: unsupported overflow mode 3", NewGenerationError("unsupported overflow mode %d", 3).Error())
}
