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

package filter

import (
	"context"
	"sync"

	"github.com/aaronlmathis/catalogetl/core"
)

// Package filter provides record predicates for CatalogETL tables.
//
// Every function returns a core.Filter. Where lifts a filter into a table stage.

// NotNull creates a filter that excludes records where the field is missing or nil.
func NotNull(field string) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		return exists && value != nil, nil
	})
}

// Equals creates a filter that includes records where the field equals expectedValue.
// Values are compared after normalization, so int32(1) equals int64(1) but "1" does not.
func Equals(field string, expectedValue interface{}) core.Filter {
	expected := core.NormalizeValue(expectedValue)
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		if !exists {
			return false, nil
		}
		value = core.NormalizeValue(value)
		if value == nil || expected == nil {
			return value == nil && expected == nil, nil
		}
		if core.TypeOf(value) != core.TypeOf(expected) {
			return false, nil
		}
		return core.CompareValues(value, expected) == 0, nil
	})
}

// Not creates a filter that negates the provided filter
func Not(filter core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		include, err := filter.ShouldInclude(ctx, record)
		if err != nil {
			return false, err
		}
		return !include, nil
	})
}

// Distinct creates a stateful filter that includes a record only the first time its values for
// columns are seen. Two records are duplicates when every listed value is equal and of the same kind.
// The filter must not be shared between tables.
func Distinct(columns ...string) core.Filter {
	var mu sync.Mutex
	seen := make(map[string]struct{})
	cols := append([]string(nil), columns...)

	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		key := core.Fingerprint(record, cols)

		mu.Lock()
		defer mu.Unlock()
		if _, dup := seen[key]; dup {
			return false, nil
		}
		seen[key] = struct{}{}
		return true, nil
	})
}

// Where lifts filter into a stage that keeps matching rows in their original order.
func Where(name string, filter core.Filter) core.Stage {
	return core.NewStage(name, func(ctx context.Context, table *core.Table) (*core.Table, error) {
		rows := make([]core.Record, 0, table.Len())
		for _, row := range table.Rows {
			keep, err := filter.ShouldInclude(ctx, row)
			if err != nil {
				return nil, err
			}
			if keep {
				rows = append(rows, row)
			}
		}
		return table.WithRows(rows), nil
	})
}
