package model

import "fmt"

// ColumnType is the logical storage type of a column
type ColumnType int

const (
	TypeInt32 ColumnType = iota + 1
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeBool
)

// String returns the type name
func (t ColumnType) String() string {
	switch t {
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Valid reports whether t is a known column type
func (t ColumnType) Valid() bool {
	return t >= TypeInt32 && t <= TypeBool
}

// Column describes one stored column of a record type and how to read it
type Column[T any] struct {
	Name  string
	Type  ColumnType
	Value func(r *T) any
}

// Shape is the static column layout of a record type.
// Column order is the storage order.
type Shape[T any] struct {
	Name    string
	Columns []Column[T]
}

// ColumnNames returns the column names in storage order
func (s Shape[T]) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// FeatureShape is the storage layout of FeatureRecord
var FeatureShape = Shape[FeatureRecord]{
	Name: "feature_record",
	Columns: []Column[FeatureRecord]{
		{Name: "time", Type: TypeInt32, Value: func(r *FeatureRecord) any { return r.Time }},
		{Name: "day", Type: TypeInt32, Value: func(r *FeatureRecord) any { return r.Day }},
		{Name: "open", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.Open }},
		{Name: "high", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.High }},
		{Name: "low", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.Low }},
		{Name: "close", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.Close }},
		{Name: "volume", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.Volume }},
		{Name: "fast_distance", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.FastDistance }},
		{Name: "fast_autocorrelation", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.FastAutocorrelation }},
		{Name: "fast_slope", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.FastSlope }},
		{Name: "slow_distance", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.SlowDistance }},
		{Name: "slow_autocorrelation", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.SlowAutocorrelation }},
		{Name: "open_location_value", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.OpenLocationValue }},
		{Name: "close_location_value", Type: TypeFloat64, Value: func(r *FeatureRecord) any { return r.CloseLocationValue }},
	},
}

// FeatureColumns lists the derived feature columns of FeatureShape
var FeatureColumns = []string{
	"fast_distance",
	"fast_autocorrelation",
	"fast_slope",
	"slow_distance",
	"slow_autocorrelation",
	"open_location_value",
	"close_location_value",
}
