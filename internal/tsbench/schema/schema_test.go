package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
)

func TestParseTypeAssignment(t *testing.T) {
	a, err := ParseTypeAssignment("1:1:1:1:1:1")
	require.NoError(t, err)

	var got []DataType
	for i := range 6 {
		got = append(got, a.TypeOf(i, 6))
	}
	assert.Equal(t, AllDataTypes, got)
}

func TestParseTypeAssignment_BucketBoundaries(t *testing.T) {
	tests := map[string]struct {
		ratio   string
		sensors int
		want    map[DataType]int
	}{
		"tenths": {
			ratio:   "1:1:1:1:1:5",
			sensors: 10,
			want:    map[DataType]int{Boolean: 1, Int32: 1, Int64: 1, Float: 1, Double: 1, Text: 5},
		},
		"thirds": {
			ratio:   "1:1:1:0:0:0",
			sensors: 3,
			want:    map[DataType]int{Boolean: 1, Int32: 1, Int64: 1},
		},
		"uneven weights": {
			ratio:   "3:0:0:0:7:0",
			sensors: 10,
			want:    map[DataType]int{Boolean: 3, Double: 7},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a, err := ParseTypeAssignment(tc.ratio)
			require.NoError(t, err)

			got := map[DataType]int{}
			for i := range tc.sensors {
				got[a.TypeOf(i, tc.sensors)]++
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseTypeAssignment_SkipsZeroWeights(t *testing.T) {
	a, err := ParseTypeAssignment("0:0:0:1:1:0")
	require.NoError(t, err)

	assert.Equal(t, Float, a.TypeOf(0, 4))
	assert.Equal(t, Float, a.TypeOf(1, 4))
	assert.Equal(t, Double, a.TypeOf(2, 4))
	assert.Equal(t, Double, a.TypeOf(3, 4))
	assert.False(t, a.Possible(Text, 4))
	assert.True(t, a.Possible(Double, 4))
}

func TestParseTypeAssignment_Invalid(t *testing.T) {
	for _, ratio := range []string{"1:1", "0:0:0:0:0:0", "1:1:1:x:1:1", "1:1:1:-1:1:1"} {
		_, err := ParseTypeAssignment(ratio)
		assert.True(t, bencherrors.IsFatal(err), "ratio %q", ratio)
	}
}

func TestParseDataType(t *testing.T) {
	dt, err := ParseDataType("double")
	require.NoError(t, err)
	assert.Equal(t, Double, dt)

	var text DataType
	require.NoError(t, text.UnmarshalText([]byte("TEXT")))
	assert.Equal(t, Text, text)

	_, err = ParseDataType("decimal")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	types, err := ParseTypeAssignment("1:1:1:1:1:1")
	require.NoError(t, err)

	ds, err := Build(Layout{
		DeviceNumber:    5,
		SensorNumber:    3,
		GroupNumber:     2,
		GroupNamePrefix: "group_",
		GroupStrategy:   GroupByMod,
		ClientNumber:    2,
		Types:           types,
	})
	require.NoError(t, err)

	require.Len(t, ds.Devices(), 5)
	assert.Equal(t, "group_1.d_3", ds.Devices()[3].String())
	assert.Equal(t, []string{"s_0", "s_1", "s_2"}, ds.Devices()[0].Sensors)
	assert.Equal(t, []string{"group_0", "group_1"}, ds.Groups())

	var client0 []int
	for _, d := range ds.ClientDevices(0) {
		client0 = append(client0, d.DeviceID)
	}
	assert.Equal(t, []int{0, 2, 4}, client0)
	assert.Len(t, ds.ClientDevices(1), 2)
	assert.Nil(t, ds.ClientDevices(7))
}

func TestBuild_GroupStrategies(t *testing.T) {
	types, err := ParseTypeAssignment("1:0:0:0:0:0")
	require.NoError(t, err)

	layout := Layout{DeviceNumber: 4, SensorNumber: 1, GroupNumber: 2, GroupNamePrefix: "g", ClientNumber: 1, Types: types}

	layout.GroupStrategy = GroupByDiv
	ds, err := Build(layout)
	require.NoError(t, err)
	var groups []string
	for _, d := range ds.Devices() {
		groups = append(groups, d.Group)
	}
	assert.Equal(t, []string{"g0", "g0", "g1", "g1"}, groups)

	layout.GroupStrategy = GroupByHash
	first, err := Build(layout)
	require.NoError(t, err)
	second, err := Build(layout)
	require.NoError(t, err)
	for i := range first.Devices() {
		assert.Equal(t, first.Devices()[i].Group, second.Devices()[i].Group)
	}
}

func TestBuild_InvalidLayout(t *testing.T) {
	types, _ := ParseTypeAssignment("1:1:1:1:1:1")
	_, err := Build(Layout{DeviceNumber: 2, SensorNumber: 1, GroupNumber: 3, ClientNumber: 1, Types: types})
	assert.True(t, bencherrors.IsFatal(err))
}

func TestGroupStrategy_UnmarshalText(t *testing.T) {
	var g GroupStrategy
	require.NoError(t, g.UnmarshalText([]byte("DIV")))
	assert.Equal(t, GroupByDiv, g)
	assert.Error(t, g.UnmarshalText([]byte("random")))
}
