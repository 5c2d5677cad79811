package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/tunogya/etna/pkg/model"
	"github.com/tunogya/etna/pkg/store"
)

const (
	// IDField is the auto-generated primary key
	IDField = "id"

	// EmbeddingField holds the feature vector
	EmbeddingField = "embedding"

	varCharMaxLength = "256"
)

var fieldTypes = map[model.ColumnType]entity.FieldType{
	model.TypeInt32:   entity.FieldTypeInt32,
	model.TypeInt64:   entity.FieldTypeInt64,
	model.TypeFloat32: entity.FieldTypeFloat,
	model.TypeFloat64: entity.FieldTypeDouble,
	model.TypeString:  entity.FieldTypeVarChar,
	model.TypeBool:    entity.FieldTypeBool,
}

// embeddingIndexes returns the positions of the embedding columns, which
// must exist and be floating point
func embeddingIndexes(table string, columns []store.ColumnSpec, embedding []string) ([]int, error) {
	if len(embedding) == 0 {
		return nil, &store.SchemaError{Table: table, Reason: "no embedding columns"}
	}

	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c.Name] = i
	}

	idx := make([]int, len(embedding))
	for i, name := range embedding {
		p, ok := pos[name]
		if !ok {
			return nil, &store.SchemaError{Table: table, Column: name, Reason: "embedding column not in layout"}
		}
		if t := columns[p].Type; t != model.TypeFloat32 && t != model.TypeFloat64 {
			return nil, &store.SchemaError{Table: table, Column: name, Reason: fmt.Sprintf("embedding column has type %s", t)}
		}
		idx[i] = p
	}
	return idx, nil
}

// BuildSchema builds the collection schema: an auto primary key, one scalar
// field per column and the embedding vector
func BuildSchema(table string, columns []store.ColumnSpec, embedding []string) (*entity.Schema, error) {
	if _, err := embeddingIndexes(table, columns, embedding); err != nil {
		return nil, err
	}

	fields := make([]*entity.Field, 0, len(columns)+2)
	fields = append(fields, &entity.Field{
		Name:       IDField,
		DataType:   entity.FieldTypeInt64,
		PrimaryKey: true,
		AutoID:     true,
	})

	for _, c := range columns {
		if c.Name == IDField || c.Name == EmbeddingField {
			return nil, &store.SchemaError{Table: table, Column: c.Name, Reason: "reserved field name"}
		}
		ft, ok := fieldTypes[c.Type]
		if !ok {
			return nil, &store.SchemaError{Table: table, Column: c.Name, Reason: fmt.Sprintf("unsupported type %s", c.Type)}
		}
		f := &entity.Field{Name: c.Name, DataType: ft}
		if ft == entity.FieldTypeVarChar {
			f.TypeParams = map[string]string{"max_length": varCharMaxLength}
		}
		fields = append(fields, f)
	}

	fields = append(fields, &entity.Field{
		Name:     EmbeddingField,
		DataType: entity.FieldTypeFloatVector,
		TypeParams: map[string]string{
			"dim": fmt.Sprintf("%d", len(embedding)),
		},
	})

	return &entity.Schema{
		CollectionName: table,
		Description:    "Bar feature rows",
		Fields:         fields,
	}, nil
}

// indexClusters is the IVF nlist of the embedding index
const indexClusters = 128

// CreateCollection creates the collection if it does not exist, indexes
// the embedding and loads it
func (c *Client) CreateCollection(ctx context.Context, schema *entity.Schema, shards int) error {
	exists, err := c.HasCollection(ctx, schema.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.conn.CreateCollection(ctx, schema, int32(shards)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if err := c.CreateIndex(ctx, schema.CollectionName, EmbeddingField, indexClusters); err != nil {
		return err
	}
	if err := c.LoadCollection(ctx, schema.CollectionName); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// BuildColumns converts buffered rows into insert columns
func BuildColumns(columns []store.ColumnSpec, embedIdx []int, rows [][]any) ([]entity.Column, error) {
	out := make([]entity.Column, 0, len(columns)+1)

	for ci, c := range columns {
		var col entity.Column
		switch c.Type {
		case model.TypeInt32:
			vals, err := collect[int32](c.Name, ci, rows)
			if err != nil {
				return nil, err
			}
			col = entity.NewColumnInt32(c.Name, vals)
		case model.TypeInt64:
			vals, err := collect[int64](c.Name, ci, rows)
			if err != nil {
				return nil, err
			}
			col = entity.NewColumnInt64(c.Name, vals)
		case model.TypeFloat32:
			vals, err := collect[float32](c.Name, ci, rows)
			if err != nil {
				return nil, err
			}
			col = entity.NewColumnFloat(c.Name, vals)
		case model.TypeFloat64:
			vals, err := collect[float64](c.Name, ci, rows)
			if err != nil {
				return nil, err
			}
			col = entity.NewColumnDouble(c.Name, vals)
		case model.TypeString:
			vals, err := collect[string](c.Name, ci, rows)
			if err != nil {
				return nil, err
			}
			col = entity.NewColumnVarChar(c.Name, vals)
		case model.TypeBool:
			vals, err := collect[bool](c.Name, ci, rows)
			if err != nil {
				return nil, err
			}
			col = entity.NewColumnBool(c.Name, vals)
		default:
			return nil, fmt.Errorf("column %s: unsupported type %s", c.Name, c.Type)
		}
		out = append(out, col)
	}

	vectors := make([][]float32, len(rows))
	for ri, row := range rows {
		vec := make([]float32, len(embedIdx))
		for i, p := range embedIdx {
			switch v := row[p].(type) {
			case float32:
				vec[i] = v
			case float64:
				vec[i] = float32(v)
			default:
				return nil, fmt.Errorf("row %d: embedding value %T is not a float", ri, row[p])
			}
		}
		vectors[ri] = vec
	}
	out = append(out, entity.NewColumnFloatVector(EmbeddingField, len(embedIdx), vectors))

	return out, nil
}

func collect[V any](name string, ci int, rows [][]any) ([]V, error) {
	vals := make([]V, len(rows))
	for ri, row := range rows {
		v, ok := row[ci].(V)
		if !ok {
			return nil, fmt.Errorf("row %d column %s: unexpected value %T", ri, name, row[ci])
		}
		vals[ri] = v
	}
	return vals, nil
}
