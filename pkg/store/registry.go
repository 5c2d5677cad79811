package store

import (
	"fmt"
	"sync"

	"github.com/tunogya/etna/pkg/model"
)

// Layout is a record shape resolved for storage: column specs plus the
// accessors that turn a record into a row in column order.
type Layout[T any] struct {
	Shape   string
	Columns []ColumnSpec

	values  []func(*T) any
	compact []bool
}

// Row returns the storage values of rec in column order
func (l *Layout[T]) Row(rec *T) []any {
	row := make([]any, len(l.values))
	for i, value := range l.values {
		v := value(rec)
		if l.compact[i] {
			if f, ok := v.(float64); ok {
				v = float32(f)
			}
		}
		row[i] = v
	}
	return row
}

type layoutKey struct {
	shape   string
	compact bool
}

// Registry caches resolved layouts per shape and float width
type Registry struct {
	mu      sync.Mutex
	layouts map[layoutKey]any
}

// NewRegistry creates an empty layout registry
func NewRegistry() *Registry {
	return &Registry{layouts: make(map[layoutKey]any)}
}

// Resolve returns the cached layout for shape, building it on first use.
// With compact set, float64 columns are stored as float32.
func Resolve[T any](r *Registry, shape model.Shape[T], compact bool) (*Layout[T], error) {
	key := layoutKey{shape: shape.Name, compact: compact}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.layouts[key]; ok {
		if l, ok := cached.(*Layout[T]); ok {
			return l, nil
		}
		return nil, &SchemaError{Table: shape.Name, Reason: "shape name registered for another record type"}
	}

	l, err := buildLayout(shape, compact)
	if err != nil {
		return nil, err
	}
	r.layouts[key] = l
	return l, nil
}

// Len returns the number of cached layouts
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.layouts)
}

func buildLayout[T any](shape model.Shape[T], compact bool) (*Layout[T], error) {
	if shape.Name == "" {
		return nil, &SchemaError{Reason: "shape has no name"}
	}
	if len(shape.Columns) == 0 {
		return nil, &SchemaError{Table: shape.Name, Reason: "shape has no columns"}
	}

	l := &Layout[T]{
		Shape:   shape.Name,
		Columns: make([]ColumnSpec, 0, len(shape.Columns)),
		values:  make([]func(*T) any, 0, len(shape.Columns)),
		compact: make([]bool, 0, len(shape.Columns)),
	}

	seen := make(map[string]struct{}, len(shape.Columns))
	for _, c := range shape.Columns {
		if c.Name == "" {
			return nil, &SchemaError{Table: shape.Name, Reason: "column without a name"}
		}
		if _, dup := seen[c.Name]; dup {
			return nil, &SchemaError{Table: shape.Name, Column: c.Name, Reason: "duplicate column"}
		}
		seen[c.Name] = struct{}{}

		if !c.Type.Valid() {
			return nil, &SchemaError{Table: shape.Name, Column: c.Name, Reason: fmt.Sprintf("unsupported type %s", c.Type)}
		}
		if c.Value == nil {
			return nil, &SchemaError{Table: shape.Name, Column: c.Name, Reason: "column has no accessor"}
		}

		typ := c.Type
		narrow := compact && typ == model.TypeFloat64
		if narrow {
			typ = model.TypeFloat32
		}

		l.Columns = append(l.Columns, ColumnSpec{Name: c.Name, Type: typ})
		l.values = append(l.values, c.Value)
		l.compact = append(l.compact, narrow)
	}

	return l, nil
}
