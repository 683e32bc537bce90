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
	"io"
	"sort"
)

// Table is the in-memory tabular dataset: an ordered schema and an ordered list of rows.
// Row values are normalized to the column type (see NormalizeValue), nil meaning null.
type Table struct {
	Schema Schema
	Rows   []Record
}

// NewTable builds a table from a schema and rows. Rows are used as given.
func NewTable(schema Schema, rows []Record) *Table {
	return &Table{Schema: schema, Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnType returns the type of a column or ErrColumnNotFound.
func (t *Table) ColumnType(name string) (ColumnType, error) {
	f, ok := t.Schema.Field(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return f.Type, nil
}

// Column returns the values of one column in row order.
func (t *Table) Column(name string) ([]interface{}, error) {
	if t.Schema.Index(name) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	values := make([]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[name]
	}
	return values, nil
}

// Count returns how many rows pass filter.
func (t *Table) Count(ctx context.Context, filter Filter) (int, error) {
	n := 0
	for _, row := range t.Rows {
		ok, err := filter.ShouldInclude(ctx, row)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// WithRows returns a table sharing this schema with different rows.
func (t *Table) WithRows(rows []Record) *Table {
	return &Table{Schema: t.Schema, Rows: rows}
}

// Collect drains source into a Table.
//
// The schema comes from the source when it implements SchemaProvider; fields it reports as TypeNull,
// and every column of sources without a schema, are inferred from the values. Read errors are routed
// through strategy and handler exactly like the streaming pipeline does.
func Collect(ctx context.Context, source DataSource, strategy ErrorStrategy, handler ErrorHandler) (*Table, error) {
	var rows []Record
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := source.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if err := HandleReadError(ctx, strategy, handler, record, err); err != nil {
				return nil, err
			}
			continue
		}
		if len(record) == 0 {
			continue
		}
		rows = append(rows, record)
	}

	var schema Schema
	if p, ok := source.(SchemaProvider); ok {
		schema = p.TableSchema()
	}
	schema = completeSchema(schema, rows)

	for _, row := range rows {
		for _, f := range schema.Fields {
			row[f.Name] = coerce(row[f.Name], f.Type)
		}
	}
	return NewTable(schema, rows), nil
}

// InferSchema derives a schema from rows. Columns are ordered by name.
func InferSchema(rows []Record) Schema {
	return completeSchema(Schema{}, rows)
}

// completeSchema adds columns present in rows but missing from schema (sorted by name) and
// infers the type of every TypeNull field.
func completeSchema(schema Schema, rows []Record) Schema {
	known := make(map[string]bool, len(schema.Fields))
	fields := append([]Field(nil), schema.Fields...)
	for _, f := range fields {
		known[f.Name] = true
	}

	var extra []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for name := range row {
			if !known[name] && !seen[name] {
				seen[name] = true
				extra = append(extra, name)
			}
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		fields = append(fields, Field{Name: name, Type: TypeNull, Nullable: true})
	}

	for i, f := range fields {
		if f.Type != TypeNull {
			continue
		}
		fields[i].Type = inferColumnType(f.Name, rows)
		fields[i].Nullable = true
	}
	return Schema{Fields: fields}
}

// inferColumnType picks one type for a column: the single observed type, double for a mix of
// integers and floats, string for anything else, null when every value is null.
func inferColumnType(name string, rows []Record) ColumnType {
	observed := make(map[ColumnType]bool)
	for _, row := range rows {
		if v := row[name]; v != nil {
			observed[TypeOf(v)] = true
		}
	}
	switch len(observed) {
	case 0:
		return TypeNull
	case 1:
		for t := range observed {
			return t
		}
	case 2:
		if observed[TypeInteger] && observed[TypeFloat] {
			return TypeFloat
		}
	}
	return TypeString
}

// coerce normalizes a value to the column type chosen for it.
func coerce(value interface{}, t ColumnType) interface{} {
	value = NormalizeValue(value)
	if value == nil {
		return nil
	}
	switch t {
	case TypeFloat:
		if i, ok := value.(int64); ok {
			return float64(i)
		}
	case TypeString:
		if _, ok := value.(string); !ok {
			return FormatValue(value, "")
		}
	}
	return value
}
