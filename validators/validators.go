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

// validators.go - schema checks that gate a table pipeline
package validators

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aaronlmathis/catalogetl/core"
)

// ErrTypeMismatch is returned when a column does not have the expected type.
var ErrTypeMismatch = errors.New("column type mismatch")

// ValidationError reports which check failed and on which columns.
type ValidationError struct {
	Check   string   // Name of the failed check
	Columns []string // Offending columns
	Err     error    // Underlying error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation %s failed on [%s]: %v", e.Check, strings.Join(e.Columns, ", "), e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ColumnTypes creates a stage that fails unless every listed column has type want.
// One mismatching column is enough to fail; the table passes through unchanged otherwise.
func ColumnTypes(want core.ColumnType, columns ...string) core.Stage {
	name := fmt.Sprintf("validate_types(%s)", strings.Join(columns, ", "))
	return core.NewStage(name, func(ctx context.Context, table *core.Table) (*core.Table, error) {
		var bad []string
		var details []string
		for _, col := range columns {
			got, err := table.ColumnType(col)
			if err != nil {
				return nil, &ValidationError{Check: "column_types", Columns: []string{col}, Err: err}
			}
			if got != want {
				bad = append(bad, col)
				details = append(details, fmt.Sprintf("%s is %s", col, got))
			}
		}
		if len(bad) > 0 {
			return nil, &ValidationError{
				Check:   "column_types",
				Columns: bad,
				Err:     fmt.Errorf("%w: want %s, %s", ErrTypeMismatch, want, strings.Join(details, "; ")),
			}
		}
		return table, nil
	})
}

// RequiredColumns creates a stage that fails when any listed column is absent from the schema.
func RequiredColumns(columns ...string) core.Stage {
	return core.NewStage("validate_required_columns", func(ctx context.Context, table *core.Table) (*core.Table, error) {
		var missing []string
		for _, col := range columns {
			if table.Schema.Index(col) < 0 {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return nil, &ValidationError{Check: "required_columns", Columns: missing, Err: core.ErrColumnNotFound}
		}
		return table, nil
	})
}
