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

package writers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/catalogetl/core"
)

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{
		"CSV": FormatCSV, "": FormatCSV, "json": FormatJSON, "jsonl": FormatJSON, "Parquet": FormatParquet,
	} {
		got, err := ParseOutputFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseOutputFormat("xlsx")
	assert.Error(t, err)
}

func TestCreate_CSVOverwritesAndKeepsSchemaOrder(t *testing.T) {
	path := OutputPath(filepath.Join(t.TempDir(), "saida_csv"), "Netflix - Python", FormatCSV)
	assert.Equal(t, "Netflix - Python.csv", filepath.Base(path))

	schema := core.NewSchema(
		core.Field{Name: "Título", Type: core.TypeString},
		core.Field{Name: "Data de Estreia", Type: core.TypeTimestamp},
	)
	table := core.NewTable(schema, []core.Record{
		{"Título": "Dark", "Data de Estreia": time.Date(2017, 12, 1, 0, 0, 0, 0, time.UTC)},
	})

	for i := 0; i < 2; i++ {
		sink, err := Create(FormatCSV, path, FileOptions{Delimiter: ';', TimeFormat: "2006-01-02", Schema: schema})
		require.NoError(t, err)
		require.NoError(t, WriteTable(context.Background(), sink, table))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Título;Data de Estreia\nDark;2017-12-01\n", string(data))
}

func TestWriteTable_EmptyTableWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	schema := core.NewSchema(core.Field{Name: "a"}, core.Field{Name: "b"})

	sink, err := Create(FormatCSV, path, FileOptions{Delimiter: ';', Schema: schema})
	require.NoError(t, err)
	require.NoError(t, WriteTable(context.Background(), sink, core.NewTable(schema, nil)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a;b\n", string(data))
}

func TestCreate_Unsupported(t *testing.T) {
	_, err := Create(OutputFormat("xml"), filepath.Join(t.TempDir(), "x.xml"), FileOptions{})
	assert.Error(t, err)
}
