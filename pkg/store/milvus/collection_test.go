package milvus

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/etna/pkg/model"
	"github.com/tunogya/etna/pkg/store"
)

func featureColumns(compact bool) []store.ColumnSpec {
	l, err := store.Resolve(store.NewRegistry(), model.FeatureShape, compact)
	if err != nil {
		panic(err)
	}
	return l.Columns
}

func TestBuildSchema(t *testing.T) {
	schema, err := BuildSchema("Features", featureColumns(true), model.FeatureColumns)
	require.NoError(t, err)

	assert.Equal(t, "Features", schema.CollectionName)
	require.Len(t, schema.Fields, 16)
	assert.Equal(t, IDField, schema.Fields[0].Name)
	assert.True(t, schema.Fields[0].PrimaryKey)
	assert.True(t, schema.Fields[0].AutoID)
	assert.Equal(t, entity.FieldTypeInt32, schema.Fields[1].DataType)
	assert.Equal(t, entity.FieldTypeFloat, schema.Fields[3].DataType)

	vec := schema.Fields[15]
	assert.Equal(t, EmbeddingField, vec.Name)
	assert.Equal(t, entity.FieldTypeFloatVector, vec.DataType)
	assert.Equal(t, "7", vec.TypeParams["dim"])
}

func TestBuildSchema_Errors(t *testing.T) {
	cols := featureColumns(false)

	_, err := BuildSchema("Features", cols, nil)
	assert.True(t, store.IsSchemaError(err))

	_, err = BuildSchema("Features", cols, []string{"missing"})
	assert.True(t, store.IsSchemaError(err))

	_, err = BuildSchema("Features", cols, []string{"time"})
	assert.True(t, store.IsSchemaError(err), "integer column cannot be embedded")

	reserved := append([]store.ColumnSpec{{Name: IDField, Type: model.TypeInt64}}, cols...)
	_, err = BuildSchema("Features", reserved, model.FeatureColumns)
	assert.True(t, store.IsSchemaError(err))
}

func TestBuildColumns(t *testing.T) {
	cols := featureColumns(true)
	idx, err := embeddingIndexes("Features", cols, model.FeatureColumns)
	require.NoError(t, err)

	l, err := store.Resolve(store.NewRegistry(), model.FeatureShape, true)
	require.NoError(t, err)

	recs := []model.FeatureRecord{
		{Time: 93000, Day: 20240102, FastDistance: 1.5, CloseLocationValue: -1},
		{Time: 93100, Day: 20240102, FastDistance: 2.5, CloseLocationValue: 1},
	}
	rows := [][]any{l.Row(&recs[0]), l.Row(&recs[1])}

	out, err := BuildColumns(cols, idx, rows)
	require.NoError(t, err)
	require.Len(t, out, 15)

	assert.Equal(t, "time", out[0].Name())
	assert.Equal(t, 2, out[0].Len())

	vec, ok := out[14].(*entity.ColumnFloatVector)
	require.True(t, ok)
	assert.Equal(t, 7, vec.Dim())
	data := vec.Data()
	assert.Equal(t, float32(1.5), data[0][0])
	assert.Equal(t, float32(1), data[1][6])
}

func TestBuildColumns_TypeMismatch(t *testing.T) {
	cols := []store.ColumnSpec{
		{Name: "time", Type: model.TypeInt32},
		{Name: "x", Type: model.TypeFloat64},
	}
	_, err := BuildColumns(cols, []int{1}, [][]any{{int64(1), 0.5}})
	assert.Error(t, err)
}

func TestNewBackend_MissingAddress(t *testing.T) {
	_, err := NewBackend(context.Background(), Config{})
	assert.ErrorIs(t, err, store.ErrInvalidConfig)
}

func TestTx_BuffersUntilCommit(t *testing.T) {
	cols := []store.ColumnSpec{{Name: "x", Type: model.TypeFloat64}}
	tr := &tx{table: "t", columns: cols, embedIdx: []int{0}}

	require.NoError(t, tr.Append([]any{1.0}))
	assert.Error(t, tr.Append([]any{1.0, 2.0}))
	require.NoError(t, tr.Rollback(context.Background()))
	assert.Empty(t, tr.rows)
	assert.Error(t, tr.Append([]any{1.0}))
}
