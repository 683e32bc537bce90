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

package transform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aaronlmathis/catalogetl/core"
	"github.com/aaronlmathis/catalogetl/filter"
)

// Package transform provides the table stages of a CatalogETL pipeline.
//
// This package includes timestamp casting, sorting, deduplication, value replacement and column renaming.
// All functions return core.Stage implementations; Records lifts a record-level core.Transformer.

// ErrNotCastable is returned when a column's type has no conversion to the requested type.
var ErrNotCastable = errors.New("column type cannot be cast")

// DefaultTimestampLayouts are tried in order when a string column is cast to timestamp.
var DefaultTimestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CastOption configures Cast and CastInto.
type CastOption func(*castOptions)

type castOptions struct {
	layouts []string
}

// WithLayouts replaces the layouts used to parse string values.
func WithLayouts(layouts ...string) CastOption {
	return func(o *castOptions) {
		o.layouts = append([]string(nil), layouts...)
	}
}

// Cast converts column to timestamp in place.
func Cast(column string, opts ...CastOption) core.Stage {
	return castStage(fmt.Sprintf("cast(%s)", column), column, column, opts)
}

// CastInto writes the timestamp cast of src into dst. An existing dst column is replaced in
// place; otherwise dst is appended as the last column.
func CastInto(src, dst string, opts ...CastOption) core.Stage {
	return castStage(fmt.Sprintf("cast(%s as %s)", src, dst), src, dst, opts)
}

func castStage(name, src, dst string, opts []CastOption) core.Stage {
	o := castOptions{layouts: DefaultTimestampLayouts}
	for _, opt := range opts {
		opt(&o)
	}

	return core.NewStage(name, func(ctx context.Context, table *core.Table) (*core.Table, error) {
		from, err := table.ColumnType(src)
		if err != nil {
			return nil, err
		}
		convert, err := timestampConverter(from, o.layouts)
		if err != nil {
			return nil, fmt.Errorf("cast %s: %w", src, err)
		}

		for _, row := range table.Rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			row[dst] = convert(row[src])
		}

		field := core.Field{Name: dst, Type: core.TypeTimestamp, Nullable: true}
		schema := core.NewSchema(table.Schema.Fields...)
		if i := schema.Index(dst); i >= 0 {
			schema.Fields[i] = field
		} else {
			schema.Fields = append(schema.Fields, field)
		}
		return core.NewTable(schema, table.Rows), nil
	})
}

// timestampConverter returns the per-value conversion for a column of type from.
// Strings that match no layout become null.
func timestampConverter(from core.ColumnType, layouts []string) (func(interface{}) interface{}, error) {
	switch from {
	case core.TypeTimestamp, core.TypeNull:
		return func(v interface{}) interface{} { return core.NormalizeValue(v) }, nil
	case core.TypeDate:
		return func(v interface{}) interface{} {
			t, ok := v.(time.Time)
			if !ok {
				return nil
			}
			y, m, d := t.UTC().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}, nil
	case core.TypeInteger, core.TypeFloat:
		return func(v interface{}) interface{} {
			switch n := core.NormalizeValue(v).(type) {
			case int64:
				return time.Unix(n, 0).UTC()
			case float64:
				if math.IsNaN(n) || math.IsInf(n, 0) {
					return nil
				}
				sec, frac := math.Modf(n)
				return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
			default:
				return nil
			}
		}, nil
	case core.TypeString:
		return func(v interface{}) interface{} {
			s, ok := v.(string)
			if !ok {
				return nil
			}
			s = strings.TrimSpace(s)
			for _, layout := range layouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC()
				}
			}
			return nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s to timestamp", ErrNotCastable, from)
	}
}

// SortKey is one ordering column.
type SortKey struct {
	Column     string
	Descending bool
}

// Asc orders column ascending, nulls first.
func Asc(column string) SortKey { return SortKey{Column: column} }

// Desc orders column descending, nulls last.
func Desc(column string) SortKey { return SortKey{Column: column, Descending: true} }

// SortBy orders rows by keys, first key most significant. The sort is stable; nulls sort first
// in ascending keys and last in descending keys.
func SortBy(keys ...SortKey) core.Stage {
	names := make([]string, len(keys))
	for i, k := range keys {
		dir := "asc"
		if k.Descending {
			dir = "desc"
		}
		names[i] = k.Column + " " + dir
	}

	return core.NewStage("sort("+strings.Join(names, ", ")+")", func(ctx context.Context, table *core.Table) (*core.Table, error) {
		for _, k := range keys {
			if _, err := table.ColumnType(k.Column); err != nil {
				return nil, err
			}
		}

		rows := append([]core.Record(nil), table.Rows...)
		sort.SliceStable(rows, func(i, j int) bool {
			for _, k := range keys {
				if c := compareKey(rows[i][k.Column], rows[j][k.Column], k.Descending); c != 0 {
					return c < 0
				}
			}
			return false
		})
		return table.WithRows(rows), nil
	})
}

// compareKey orders a before b for one sort key. Null is the smallest value, so it leads an
// ascending key and trails a descending one.
func compareKey(a, b interface{}, desc bool) int {
	var c int
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		c = -1
	case b == nil:
		c = 1
	default:
		c = core.CompareValues(a, b)
	}
	if desc {
		return -c
	}
	return c
}

// DropDuplicates removes rows whose values in columns equal an earlier row's, keeping the first
// occurrence and the existing order. With no columns every column of the schema is compared.
func DropDuplicates(columns ...string) core.Stage {
	return core.NewStage("drop_duplicates", func(ctx context.Context, table *core.Table) (*core.Table, error) {
		cols := columns
		if len(cols) == 0 {
			cols = table.Schema.Names()
		}
		for _, c := range cols {
			if _, err := table.ColumnType(c); err != nil {
				return nil, err
			}
		}
		return filter.Where("drop_duplicates", filter.Distinct(cols...)).Apply(ctx, table)
	})
}

// Replace sets column to replacement on every row where it equals old (see filter.Equals).
// Other values pass through unchanged.
func Replace(column string, old, replacement interface{}) core.Stage {
	match := filter.Equals(column, old)
	return core.NewStage(fmt.Sprintf("replace(%s)", column), func(ctx context.Context, table *core.Table) (*core.Table, error) {
		if _, err := table.ColumnType(column); err != nil {
			return nil, err
		}
		for _, row := range table.Rows {
			hit, err := match.ShouldInclude(ctx, row)
			if err != nil {
				return nil, err
			}
			if hit {
				row[column] = replacement
			}
		}
		return table, nil
	})
}

// Renaming maps one column name to another.
type Renaming struct {
	From string
	To   string
}

// Rename applies renamings in order, keeping column positions. Renaming a column that does not
// exist is a no-op; renaming onto another existing column is an error.
func Rename(renamings ...Renaming) core.Stage {
	return core.NewStage("rename", func(ctx context.Context, table *core.Table) (*core.Table, error) {
		schema := core.NewSchema(table.Schema.Fields...)
		applied := make([]Renaming, 0, len(renamings))
		for _, r := range renamings {
			i := schema.Index(r.From)
			if i < 0 || r.From == r.To {
				continue
			}
			if schema.Index(r.To) >= 0 {
				return nil, fmt.Errorf("rename %s to %s: column already exists", r.From, r.To)
			}
			schema.Fields[i].Name = r.To
			applied = append(applied, r)
		}

		rows := make([]core.Record, len(table.Rows))
		for n, row := range table.Rows {
			out := row.Clone()
			for _, r := range applied {
				v, ok := out[r.From]
				delete(out, r.From)
				if ok {
					out[r.To] = v
				}
			}
			rows[n] = out
		}
		return core.NewTable(schema, rows), nil
	})
}

// Records lifts a record-level transformer into a stage. The schema is re-inferred for columns the
// transformer adds; existing columns keep their declared types.
func Records(name string, t core.Transformer) core.Stage {
	return core.NewStage(name, func(ctx context.Context, table *core.Table) (*core.Table, error) {
		rows := make([]core.Record, 0, table.Len())
		for _, row := range table.Rows {
			out, err := t.Transform(ctx, row)
			if err != nil {
				return nil, err
			}
			if out != nil {
				rows = append(rows, out)
			}
		}

		schema := core.NewSchema(table.Schema.Fields...)
		for _, f := range core.InferSchema(rows).Fields {
			if schema.Index(f.Name) < 0 {
				schema.Fields = append(schema.Fields, f)
			}
		}
		return core.NewTable(schema, rows), nil
	})
}
