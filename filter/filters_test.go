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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/catalogetl/core"
)

func include(t *testing.T, f core.Filter, r core.Record) bool {
	t.Helper()
	ok, err := f.ShouldInclude(context.Background(), r)
	require.NoError(t, err)
	return ok
}

func TestNotNull(t *testing.T) {
	f := NotNull("Premiere")
	assert.False(t, include(t, f, core.Record{}))
	assert.False(t, include(t, f, core.Record{"Premiere": nil}))
	assert.True(t, include(t, f, core.Record{"Premiere": ""}))
}

func TestEquals(t *testing.T) {
	f := Equals("Seasons", "TBA")
	assert.True(t, include(t, f, core.Record{"Seasons": "TBA"}))
	assert.False(t, include(t, f, core.Record{"Seasons": "tba"}))
	assert.False(t, include(t, f, core.Record{"Seasons": nil}))
	assert.False(t, include(t, f, core.Record{}))

	n := Equals("n", int32(1))
	assert.True(t, include(t, n, core.Record{"n": int64(1)}))
	assert.False(t, include(t, n, core.Record{"n": "1"}))

	null := Equals("n", nil)
	assert.True(t, include(t, null, core.Record{"n": nil}))
}

func TestNot(t *testing.T) {
	assert.True(t, include(t, Not(NotNull("a")), core.Record{"a": nil}))

	boom := errors.New("boom")
	failing := core.FilterFunc(func(ctx context.Context, r core.Record) (bool, error) { return false, boom })
	_, err := Not(failing).ShouldInclude(context.Background(), core.Record{})
	assert.ErrorIs(t, err, boom)
}

func TestDistinct(t *testing.T) {
	f := Distinct("a", "b")
	assert.True(t, include(t, f, core.Record{"a": 1, "b": "x"}))
	assert.False(t, include(t, f, core.Record{"a": int64(1), "b": "x", "c": "ignored"}))
	assert.True(t, include(t, f, core.Record{"a": 1, "b": nil}))
	assert.False(t, include(t, f, core.Record{"a": 1}))
	assert.True(t, include(t, f, core.Record{"a": "1", "b": "x"}))
}

func TestWhere(t *testing.T) {
	table := core.NewTable(
		core.NewSchema(core.Field{Name: "g", Type: core.TypeString}),
		[]core.Record{{"g": "Drama"}, {"g": nil}, {"g": "Comedy"}},
	)
	out, err := Where("non_null_genre", NotNull("g")).Apply(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{"g": "Drama"}, {"g": "Comedy"}}, out.Rows)
	assert.Equal(t, 3, table.Len())
}
