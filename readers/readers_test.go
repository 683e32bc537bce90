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

package readers

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/catalogetl/core"
	"github.com/aaronlmathis/catalogetl/writers"
)

func writeParquetFixture(t *testing.T, rows []core.Record, schema core.Schema) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.parquet")
	w, err := writers.NewParquetWriter(path, writers.WithTableSchema(schema), writers.WithBatchSize(2))
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, w.Write(context.Background(), r))
	}
	require.NoError(t, w.Close())
	return path
}

func TestParquetReader_RoundTrip(t *testing.T) {
	premiere := time.Date(2016, 7, 15, 0, 0, 0, 0, time.UTC)
	schema := core.NewSchema(
		core.Field{Name: "Title", Type: core.TypeString, Nullable: true},
		core.Field{Name: "Active", Type: core.TypeBoolean, Nullable: true},
		core.Field{Name: "Premiere", Type: core.TypeTimestamp, Nullable: true},
		core.Field{Name: "Runtime", Type: core.TypeInteger, Nullable: true},
	)
	rows := []core.Record{
		{"Title": "Stranger Things", "Active": true, "Premiere": premiere, "Runtime": int64(50)},
		{"Title": "Narcos", "Active": false, "Premiere": nil, "Runtime": int64(49)},
		{"Title": nil, "Active": true, "Premiere": premiere, "Runtime": nil},
	}
	path := writeParquetFixture(t, rows, schema)

	reader, err := NewParquetReader(path, WithBatchSize(2), WithAllocator(memory.NewGoAllocator()), WithParallelRead(true))
	require.NoError(t, err)

	assert.Equal(t, int64(3), reader.NumRows())
	assert.Equal(t, []string{"Title", "Active", "Premiere", "Runtime"}, reader.TableSchema().Names())
	assert.Equal(t, core.TypeTimestamp, reader.TableSchema().DTypes()["Premiere"])

	table, err := core.Collect(context.Background(), reader, core.FailFast, nil)
	require.NoError(t, err)
	require.NoError(t, reader.Close())

	require.Equal(t, 3, table.Len())
	assert.Equal(t, "Stranger Things", table.Rows[0]["Title"])
	assert.Equal(t, premiere, table.Rows[0]["Premiere"])
	assert.Nil(t, table.Rows[1]["Premiere"])
	assert.Equal(t, int64(49), table.Rows[1]["Runtime"])
	assert.Nil(t, table.Rows[2]["Title"])

	stats := reader.Stats()
	assert.Equal(t, int64(3), stats.RecordsRead)
	assert.GreaterOrEqual(t, stats.BatchesRead, int64(2))
	assert.Equal(t, int64(1), stats.NullValueCounts["Premiere"])
}

func TestParquetReader_ColumnProjection(t *testing.T) {
	schema := core.NewSchema(
		core.Field{Name: "a", Type: core.TypeInteger, Nullable: true},
		core.Field{Name: "b", Type: core.TypeString, Nullable: true},
	)
	path := writeParquetFixture(t, []core.Record{{"a": int64(1), "b": "x"}}, schema)

	reader, err := NewParquetReader(path, WithColumns("b"))
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, []string{"b"}, reader.TableSchema().Names())
	rec, err := reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.Record{"b": "x"}, rec)

	_, err = reader.Read(context.Background())
	assert.Equal(t, io.EOF, err)

	_, err = NewParquetReader(path, WithColumns("missing"))
	var pqErr *ParquetReaderError
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, "column_projection", pqErr.Op)
}

func TestParquetReader_MissingFile(t *testing.T) {
	_, err := NewParquetReader(filepath.Join(t.TempDir(), "nope.parquet"))
	var pqErr *ParquetReaderError
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, "open_file", pqErr.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParquetReader_MemoryLimitStopsSkipErrors(t *testing.T) {
	schema := core.NewSchema(core.Field{Name: "n", Type: core.TypeInteger, Nullable: true})
	rows := make([]core.Record, 10)
	for i := range rows {
		rows[i] = core.Record{"n": int64(i)}
	}
	path := writeParquetFixture(t, rows, schema)

	reader, err := NewParquetReader(path, WithBatchSize(2), WithMemoryLimit(1))
	require.NoError(t, err)
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = core.Collect(ctx, reader, core.SkipErrors, nil)
	var pqErr *ParquetReaderError
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, "load_batch", pqErr.Op)
	assert.ErrorContains(t, err, "memory limit exceeded")
	assert.NoError(t, ctx.Err())
}

func TestCSVReader_ParsesValues(t *testing.T) {
	input := "title;seasons;score;active\nDark;3;8.7;true\nOzark; ;;false\n"
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader(input)), WithCSVComma(';'))
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "seasons", "score", "active"}, reader.TableSchema().Names())

	table, err := core.Collect(context.Background(), reader, core.FailFast, nil)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, core.Record{"title": "Dark", "seasons": int64(3), "score": 8.7, "active": true}, table.Rows[0])
	assert.Nil(t, table.Rows[1]["seasons"])
	assert.Equal(t, int64(1), reader.Stats().NullValueCounts["score"])
}

func TestCSVReader_DetectsDelimiterOfCatalogOutput(t *testing.T) {
	input := "Título;Temporada;Ativo;Data de Alteração\n" +
		"Dark;3;true;2021-03-04T10:00:00.000Z\n" +
		"\"Narcos; Mexico\";a ser anunciado;false;\n"
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader(input)))
	require.NoError(t, err)

	assert.Equal(t, ';', reader.Comma())
	assert.Equal(t, core.NewSchema(
		core.Field{Name: "Título", Type: core.TypeString, Nullable: true},
		core.Field{Name: "Temporada", Type: core.TypeString, Nullable: true},
		core.Field{Name: "Ativo", Type: core.TypeBoolean, Nullable: true},
		core.Field{Name: "Data de Alteração", Type: core.TypeString, Nullable: true},
	), reader.TableSchema())

	table, err := core.Collect(context.Background(), reader, core.FailFast, nil)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "3", table.Rows[0]["Temporada"], "column typed as string keeps numeric-looking cells as text")
	assert.Equal(t, "Narcos; Mexico", table.Rows[1]["Título"])
	assert.Equal(t, false, table.Rows[1]["Ativo"])
	assert.Nil(t, table.Rows[1]["Data de Alteração"])
	assert.Equal(t, int64(2), reader.Stats().RowsSampled)
}

func TestCSVReader_ColumnLevelInference(t *testing.T) {
	input := "id,score,flag,note\n1,2,true,NA\n2,2.5,false,x\n3,,TRUE,NA\n"
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader(input)), WithCSVNullValues("NA"))
	require.NoError(t, err)

	assert.Equal(t, map[string]core.ColumnType{
		"id":    core.TypeInteger,
		"score": core.TypeFloat,
		"flag":  core.TypeBoolean,
		"note":  core.TypeString,
	}, reader.TableSchema().DTypes())

	table, err := core.Collect(context.Background(), reader, core.FailFast, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, table.Rows[0]["score"])
	assert.Equal(t, true, table.Rows[2]["flag"])
	assert.Nil(t, table.Rows[0]["note"])
	assert.Equal(t, int64(2), reader.Stats().NullValueCounts["note"])
}

func TestCSVReader_ValueOutsideSampledType(t *testing.T) {
	input := "id,title\n1,Dark\nseven,Ozark\n3,Glow\n"
	reader, err := NewCSVReader(io.NopCloser(strings.NewReader(input)), WithCSVInferRows(1))
	require.NoError(t, err)
	assert.Equal(t, core.TypeInteger, reader.TableSchema().DTypes()["id"])

	_, err = core.Collect(context.Background(), reader, core.FailFast, nil)
	var csvErr *CSVReaderError
	require.ErrorAs(t, err, &csvErr)
	assert.Equal(t, "parse_value", csvErr.Op)
	assert.Equal(t, "id", csvErr.Column)
	assert.Equal(t, 3, csvErr.Line)

	reader, err = NewCSVReader(io.NopCloser(strings.NewReader(input)), WithCSVInferRows(1))
	require.NoError(t, err)
	table, err := core.Collect(context.Background(), reader, core.SkipErrors, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, int64(1), reader.Stats().ParseErrors)
}

func TestJSONReader_SkipsBlankLinesAndDecodesNumbers(t *testing.T) {
	input := "{\"title\":\"Dark\",\"seasons\":3,\"score\":8.5}\n\n{\"title\":\"Ozark\",\"seasons\":null}\n"
	reader := NewJSONReader(io.NopCloser(strings.NewReader(input)))

	ctx := context.Background()
	first, err := reader.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), first["seasons"])
	assert.Equal(t, 8.5, first["score"])

	second, err := reader.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, second["seasons"])

	_, err = reader.Read(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestJSONReader_DecodeError(t *testing.T) {
	reader := NewJSONReader(io.NopCloser(strings.NewReader("{\"a\":1}\n{broken\n")))
	ctx := context.Background()
	_, err := reader.Read(ctx)
	require.NoError(t, err)

	_, err = reader.Read(ctx)
	var jsonErr *JSONReaderError
	require.ErrorAs(t, err, &jsonErr)
	assert.Equal(t, 2, jsonErr.Line)
}

func TestOpen_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a,b\n1,x\n"), 0o644))
	jsonPath := filepath.Join(dir, "in.jsonl")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{\"a\":1}\n"), 0o644))

	src, err := Open(csvPath)
	require.NoError(t, err)
	assert.IsType(t, &CSVReader{}, src)
	require.NoError(t, src.Close())

	src, err = Open(jsonPath)
	require.NoError(t, err)
	assert.IsType(t, &JSONReader{}, src)
	require.NoError(t, src.Close())

	_, err = Open(filepath.Join(dir, "in.xlsx"))
	assert.ErrorContains(t, err, "unsupported input format")

	format, err := DetectFormat("s3://bucket/catalog.PARQUET")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, format)
}
