package config

import (
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartTime(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		"rfc3339 with offset": {
			input: "2018-08-30T00:00:00+08:00",
			want:  time.Date(2018, 8, 29, 16, 0, 0, 0, time.UTC),
		},
		"date only": {
			input: "2020-01-02",
			want:  time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		"garbage": {
			input:   "yesterday",
			wantErr: true,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseStartTime(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "expected %s, got %s", tc.want, got)
		})
	}
}

func TestStartTimeDecodeHook(t *testing.T) {
	var target struct {
		StartTime time.Time
		Timeout   time.Duration
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			StartTimeDecodeHook(),
		),
		Result: &target,
	})
	require.NoError(t, err)

	require.NoError(t, decoder.Decode(map[string]interface{}{
		"startTime": "2020-01-02",
		"timeout":   "5s",
	}))
	assert.Equal(t, 2020, target.StartTime.Year())
	assert.Equal(t, 5*time.Second, target.Timeout)
}
