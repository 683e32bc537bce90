//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of CatalogETL.
//
// CatalogETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// CatalogETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with CatalogETL. If not, see https://www.gnu.org/licenses/.

package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Package core defines the core types for the CatalogETL library.
//
// CatalogETL reads a columnar dataset into an in-memory table, runs it through an ordered chain of
// table stages and writes the result to a delimited file. This file contains the record, column type
// and schema types together with the function adapters.

// Record represents a single row of a table.
// Each record is a map from column names to values, supporting heterogeneous data.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ColumnType names the logical type of a column. The names follow the dtype strings of the
// dataframe engines the job was modelled on, so "timestamp" means the same thing in logs and checks.
type ColumnType string

const (
	TypeNull      ColumnType = "null"
	TypeString    ColumnType = "string"
	TypeInteger   ColumnType = "bigint"
	TypeFloat     ColumnType = "double"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
	TypeDate      ColumnType = "date"
	TypeBinary    ColumnType = "binary"
)

// TypeOf reports the column type a Go value maps to.
func TypeOf(value interface{}) ColumnType {
	switch value.(type) {
	case nil:
		return TypeNull
	case string:
		return TypeString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32, float64:
		return TypeFloat
	case bool:
		return TypeBoolean
	case time.Time:
		return TypeTimestamp
	case []byte:
		return TypeBinary
	default:
		return TypeString
	}
}

// Field describes one column of a schema.
type Field struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Schema is the ordered list of columns of a table.
type Schema struct {
	Fields []Field
}

// NewSchema builds a schema from fields.
func NewSchema(fields ...Field) Schema {
	return Schema{Fields: append([]Field(nil), fields...)}
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of a column or -1.
func (s Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	if i := s.Index(name); i >= 0 {
		return s.Fields[i], true
	}
	return Field{}, false
}

// DTypes returns name -> type, the shape engines print for a frame's dtypes.
func (s Schema) DTypes() map[string]ColumnType {
	out := make(map[string]ColumnType, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f.Type
	}
	return out
}

// String renders the schema as a tree, one column per line.
func (s Schema) String() string {
	var b strings.Builder
	b.WriteString("root\n")
	for _, f := range s.Fields {
		fmt.Fprintf(&b, " |-- %s: %s (nullable = %t)\n", f.Name, f.Type, f.Nullable)
	}
	return b.String()
}

// TransformFunc is a function adapter for the Transformer interface.
// Allows ordinary functions to be used as Transformers.
type TransformFunc func(ctx context.Context, record Record) (Record, error)

// Transform implements the Transformer interface for TransformFunc.
func (f TransformFunc) Transform(ctx context.Context, record Record) (Record, error) {
	return f(ctx, record)
}

// FilterFunc is a function adapter for the Filter interface.
// Allows ordinary functions to be used as Filters.
type FilterFunc func(ctx context.Context, record Record) (bool, error)

// ShouldInclude implements the Filter interface for FilterFunc.
func (f FilterFunc) ShouldInclude(ctx context.Context, record Record) (bool, error) {
	return f(ctx, record)
}

// StageFunc is a function adapter for the Stage interface.
type StageFunc func(ctx context.Context, table *Table) (*Table, error)

type namedStage struct {
	name string
	fn   StageFunc
}

func (s namedStage) Name() string { return s.name }

func (s namedStage) Apply(ctx context.Context, table *Table) (*Table, error) {
	return s.fn(ctx, table)
}

// NewStage wraps fn as a named Stage.
func NewStage(name string, fn StageFunc) Stage {
	return namedStage{name: name, fn: fn}
}
