package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeatureShape_Columns(t *testing.T) {
	names := FeatureShape.ColumnNames()
	assert.Equal(t, []string{"time", "day", "open", "high", "low", "close", "volume"}, names[:7])
	assert.Equal(t, FeatureColumns, names[7:])

	for _, c := range FeatureShape.Columns {
		assert.True(t, c.Type.Valid(), c.Name)
	}
}

func TestFeatureShape_Values(t *testing.T) {
	rec := NewFeatureRecord(
		BaseBar{Time: 93000, Day: 20240102, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		Features{FastDistance: 3, CloseLocationValue: 0.33},
	)

	got := make(map[string]any)
	for _, c := range FeatureShape.Columns {
		got[c.Name] = c.Value(&rec)
	}
	assert.Equal(t, int32(93000), got["time"])
	assert.Equal(t, int32(20240102), got["day"])
	assert.Equal(t, 1.5, got["close"])
	assert.Equal(t, 3.0, got["fast_distance"])
	assert.Equal(t, 0.33, got["close_location_value"])
}

func TestColumnType_String(t *testing.T) {
	assert.Equal(t, "float32", TypeFloat32.String())
	assert.Equal(t, "ColumnType(0)", ColumnType(0).String())
	assert.False(t, ColumnType(0).Valid())
	assert.False(t, ColumnType(7).Valid())
}

func TestBaseBar_Range(t *testing.T) {
	assert.Equal(t, 3.0, BaseBar{High: 3, Low: 0}.Range())
	assert.Zero(t, BaseBar{High: 5, Low: 5}.Range())
}
