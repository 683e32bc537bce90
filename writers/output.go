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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aaronlmathis/catalogetl/core"
)

// OutputFormat names a file sink format.
type OutputFormat string

const (
	FormatCSV     OutputFormat = "csv"
	FormatJSON    OutputFormat = "jsonl"
	FormatParquet OutputFormat = "parquet"
)

// ParseOutputFormat accepts a format name case-insensitively. "json" is an alias for jsonl.
func ParseOutputFormat(name string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "csv", "":
		return FormatCSV, nil
	case "json", "jsonl":
		return FormatJSON, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", name)
	}
}

// Extension returns the file extension written for the format.
func (f OutputFormat) Extension() string {
	return "." + string(f)
}

// FileOptions configures a file sink created by Create.
type FileOptions struct {
	Delimiter  rune        // CSV field delimiter, ',' when zero
	TimeFormat string      // Timestamp layout for text formats
	Schema     core.Schema // Column order and types
}

// OutputPath joins the output directory, base name and the format's extension.
func OutputPath(dir, baseName string, format OutputFormat) string {
	return filepath.Join(dir, baseName+format.Extension())
}

// Create opens a sink for format at path, creating parent directories and replacing any existing file.
func Create(format OutputFormat, path string, opts FileOptions) (core.DataSink, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}

	switch format {
	case FormatCSV:
		f, err := os.Create(path)
		if err != nil {
			return nil, &CSVWriterError{Op: "open_file", Err: err}
		}
		comma := opts.Delimiter
		if comma == 0 {
			comma = ','
		}
		csvOpts := []WriterOptionCSV{WithComma(comma)}
		if len(opts.Schema.Fields) > 0 {
			csvOpts = append(csvOpts, WithHeaders(opts.Schema.Names()))
		}
		if opts.TimeFormat != "" {
			csvOpts = append(csvOpts, WithTimeFormat(opts.TimeFormat))
		}
		return NewCSVWriter(f, csvOpts...)
	case FormatJSON:
		f, err := os.Create(path)
		if err != nil {
			return nil, &JSONWriterError{Op: "open_file", Err: err}
		}
		var jsonOpts []WriterOptionJSON
		if opts.TimeFormat != "" {
			jsonOpts = append(jsonOpts, WithJSONTimeFormat(opts.TimeFormat))
		}
		return NewJSONWriter(f, jsonOpts...), nil
	case FormatParquet:
		var pqOpts []WriterOption
		if len(opts.Schema.Fields) > 0 {
			pqOpts = append(pqOpts, WithTableSchema(opts.Schema))
		}
		return NewParquetWriter(path, pqOpts...)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteTable writes every row of table to sink in order and closes it. An empty table still gets
// its header when the sink writes one.
func WriteTable(ctx context.Context, sink core.DataSink, table *core.Table) (err error) {
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if table.Len() == 0 {
		if hw, ok := sink.(interface{ WriteHeader() error }); ok {
			return hw.WriteHeader()
		}
		return nil
	}

	for _, row := range table.Rows {
		if err := sink.Write(ctx, row); err != nil {
			return err
		}
	}
	return sink.Flush()
}
