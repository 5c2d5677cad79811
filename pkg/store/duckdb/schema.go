package duckdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/tunogya/etna/pkg/model"
	"github.com/tunogya/etna/pkg/store"
)

// columnTypes maps logical column types onto DuckDB types
var columnTypes = map[model.ColumnType]string{
	model.TypeInt32:   "INTEGER",
	model.TypeInt64:   "BIGINT",
	model.TypeFloat32: "REAL",
	model.TypeFloat64: "DOUBLE",
	model.TypeString:  "VARCHAR",
	model.TypeBool:    "BOOLEAN",
}

// CreateTableSQL builds the CREATE TABLE IF NOT EXISTS statement for table
func CreateTableSQL(table string, columns []store.ColumnSpec) (string, error) {
	if len(columns) == 0 {
		return "", &store.SchemaError{Table: table, Reason: "no columns"}
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		typ, ok := columnTypes[c.Type]
		if !ok {
			return "", &store.SchemaError{Table: table, Column: c.Name, Reason: fmt.Sprintf("unsupported type %s", c.Type)}
		}
		defs[i] = fmt.Sprintf("    %s %s", quoteIdent(c.Name), typ)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n);", quoteIdent(table), strings.Join(defs, ",\n")), nil
}

// InitializeSchema creates table with the given columns
func InitializeSchema(ctx context.Context, c *Client, table string, columns []store.ColumnSpec) error {
	ddl, err := CreateTableSQL(table, columns)
	if err != nil {
		return err
	}
	if err := c.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
