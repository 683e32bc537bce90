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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/catalogetl/core"
)

func apply(t *testing.T, stage core.Stage, table *core.Table) *core.Table {
	t.Helper()
	out, err := stage.Apply(context.Background(), table)
	require.NoError(t, err)
	return out
}

func TestCast_FromEachSourceType(t *testing.T) {
	want := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		typ   core.ColumnType
		value interface{}
		want  interface{}
	}{
		{"timestamp", core.TypeTimestamp, want, want},
		{"date", core.TypeDate, want.Add(0), want},
		{"bigint", core.TypeInteger, want.Unix(), want},
		{"double", core.TypeFloat, float64(want.Unix()) + 0.5, want.Add(500 * time.Millisecond)},
		{"string_date", core.TypeString, "2019-03-01", want},
		{"string_datetime", core.TypeString, " 2019-03-01 00:00:00 ", want},
		{"string_rfc3339", core.TypeString, "2019-03-01T01:00:00+01:00", want},
		{"string_garbage", core.TypeString, "soon", nil},
		{"null", core.TypeNull, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := core.NewTable(
				core.NewSchema(core.Field{Name: "Premiere", Type: tt.typ, Nullable: true}),
				[]core.Record{{"Premiere": tt.value}},
			)
			out := apply(t, Cast("Premiere"), table)

			typ, err := out.ColumnType("Premiere")
			require.NoError(t, err)
			assert.Equal(t, core.TypeTimestamp, typ)
			assert.Equal(t, tt.want, out.Rows[0]["Premiere"])
		})
	}
}

func TestCast_Errors(t *testing.T) {
	table := core.NewTable(
		core.NewSchema(core.Field{Name: "Active", Type: core.TypeBoolean}),
		[]core.Record{{"Active": true}},
	)

	_, err := Cast("Active").Apply(context.Background(), table)
	assert.ErrorIs(t, err, ErrNotCastable)

	_, err = Cast("Premiere").Apply(context.Background(), table)
	assert.ErrorIs(t, err, core.ErrColumnNotFound)
}

func TestCast_CustomLayouts(t *testing.T) {
	table := core.NewTable(
		core.NewSchema(core.Field{Name: "d", Type: core.TypeString}),
		[]core.Record{{"d": "01/03/2019"}, {"d": "2019-03-01"}},
	)
	out := apply(t, Cast("d", WithLayouts("02/01/2006")), table)
	assert.Equal(t, time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC), out.Rows[0]["d"])
	assert.Nil(t, out.Rows[1]["d"])
}

func TestCastInto_AppendsDerivedColumn(t *testing.T) {
	ts := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	table := core.NewTable(
		core.NewSchema(
			core.Field{Name: "Data de Inclusão", Type: core.TypeTimestamp},
			core.Field{Name: "Título", Type: core.TypeString},
		),
		[]core.Record{{"Data de Inclusão": ts, "Título": "Dark"}},
	)
	out := apply(t, CastInto("Data de Inclusão", "Data de Alteração"), table)

	assert.Equal(t, []string{"Data de Inclusão", "Título", "Data de Alteração"}, out.Schema.Names())
	assert.Equal(t, ts, out.Rows[0]["Data de Alteração"])
	assert.Equal(t, core.TypeTimestamp, out.Schema.DTypes()["Data de Alteração"])
}

func TestSortBy_NullPlacementStable(t *testing.T) {
	table := core.NewTable(
		core.NewSchema(
			core.Field{Name: "Active", Type: core.TypeBoolean},
			core.Field{Name: "Genre", Type: core.TypeString},
			core.Field{Name: "id", Type: core.TypeInteger},
		),
		[]core.Record{
			{"Active": false, "Genre": "Drama", "id": int64(1)},
			{"Active": true, "Genre": "Comedy", "id": int64(2)},
			{"Active": nil, "Genre": "Drama", "id": int64(3)},
			{"Active": true, "Genre": "Drama", "id": int64(4)},
			{"Active": true, "Genre": nil, "id": int64(5)},
			{"Active": true, "Genre": "Drama", "id": int64(6)},
		},
	)
	out := apply(t, SortBy(Desc("Active"), Desc("Genre")), table)

	var ids []int64
	for _, r := range out.Rows {
		ids = append(ids, r["id"].(int64))
	}
	assert.Equal(t, []int64{4, 6, 2, 5, 1, 3}, ids)
	assert.Equal(t, int64(1), table.Rows[0]["id"], "input order untouched")

	ids = ids[:0]
	for _, r := range apply(t, SortBy(Asc("Active"), Asc("Genre")), table).Rows {
		ids = append(ids, r["id"].(int64))
	}
	assert.Equal(t, []int64{3, 1, 5, 2, 4, 6}, ids, "ascending keys put nulls first")

	_, err := SortBy(Asc("missing")).Apply(context.Background(), table)
	assert.ErrorIs(t, err, core.ErrColumnNotFound)
}

func TestDropDuplicates_KeepsFirstOccurrence(t *testing.T) {
	schema := core.NewSchema(
		core.Field{Name: "Title", Type: core.TypeString},
		core.Field{Name: "Seasons", Type: core.TypeString},
	)
	table := core.NewTable(schema, []core.Record{
		{"Title": "Dark", "Seasons": "3"},
		{"Title": "Ozark", "Seasons": "TBA"},
		{"Title": "Dark", "Seasons": "3"},
		{"Title": "Dark", "Seasons": nil},
		{"Title": "Ozark", "Seasons": "TBA"},
	})

	out := apply(t, DropDuplicates(), table)
	assert.Equal(t, []core.Record{
		{"Title": "Dark", "Seasons": "3"},
		{"Title": "Ozark", "Seasons": "TBA"},
		{"Title": "Dark", "Seasons": nil},
	}, out.Rows)

	byTitle := apply(t, DropDuplicates("Title"), table)
	assert.Equal(t, 2, byTitle.Len())
}

func TestReplace(t *testing.T) {
	table := core.NewTable(
		core.NewSchema(core.Field{Name: "Seasons", Type: core.TypeString}),
		[]core.Record{{"Seasons": "TBA"}, {"Seasons": "2 Seasons"}, {"Seasons": nil}, {"Seasons": "TBA "}},
	)
	out := apply(t, Replace("Seasons", "TBA", "a ser anunciado"), table)

	assert.Equal(t, []core.Record{
		{"Seasons": "a ser anunciado"},
		{"Seasons": "2 Seasons"},
		{"Seasons": nil},
		{"Seasons": "TBA "},
	}, out.Rows)

	_, err := Replace("Missing", "a", "b").Apply(context.Background(), table)
	assert.ErrorIs(t, err, core.ErrColumnNotFound)
}

func TestRename_PreservesOrder(t *testing.T) {
	table := core.NewTable(
		core.NewSchema(
			core.Field{Name: "Title", Type: core.TypeString},
			core.Field{Name: "Genre", Type: core.TypeString},
			core.Field{Name: "Active", Type: core.TypeBoolean},
		),
		[]core.Record{{"Title": "Dark", "Genre": "Drama", "Active": true}},
	)
	out := apply(t, Rename(
		Renaming{From: "Title", To: "Título"},
		Renaming{From: "Genre", To: "Gênero"},
		Renaming{From: "NotThere", To: "Nada"},
	), table)

	assert.Equal(t, []string{"Título", "Gênero", "Active"}, out.Schema.Names())
	assert.Equal(t, core.Record{"Título": "Dark", "Gênero": "Drama", "Active": true}, out.Rows[0])
	assert.Equal(t, "Dark", table.Rows[0]["Title"])

	_, err := Rename(Renaming{From: "Title", To: "Genre"}).Apply(context.Background(), table)
	assert.ErrorContains(t, err, "already exists")
}

func TestRecords_LiftsTransformer(t *testing.T) {
	table := core.NewTable(
		core.NewSchema(core.Field{Name: "Title", Type: core.TypeString}),
		[]core.Record{{"Title": "dark"}},
	)
	upper := core.TransformFunc(func(ctx context.Context, r core.Record) (core.Record, error) {
		out := r.Clone()
		out["Upper"] = strings.ToUpper(r["Title"].(string))
		return out, nil
	})
	out := apply(t, Records("upper", upper), table)

	assert.Equal(t, []string{"Title", "Upper"}, out.Schema.Names())
	assert.Equal(t, "DARK", out.Rows[0]["Upper"])
}
