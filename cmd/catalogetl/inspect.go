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

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aaronlmathis/catalogetl/core"
	"github.com/aaronlmathis/catalogetl/readers"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.parquet>",
	Short: "Print a parquet file's layout and first records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, _ := cmd.Flags().GetInt("rows")
		return inspectParquet(cmd.Context(), cmd.OutOrStdout(), args[0], rows)
	},
}

func init() {
	inspectCmd.Flags().IntP("rows", "n", 5, "Number of records to print")
}

func inspectParquet(ctx context.Context, out io.Writer, path string, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return fmt.Errorf("open parquet file: %w", err)
	}
	defer pf.Close()

	fmt.Fprintf(out, "File: %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
	fmt.Fprintf(out, "Rows: %d\n", pf.NumRows())
	fmt.Fprintf(out, "Row groups: %d\n", pf.NumRowGroups())
	for i := 0; i < pf.NumRowGroups(); i++ {
		fmt.Fprintf(out, "  Row group %d: %d rows\n", i, pf.RowGroup(i).NumRows())
	}

	schema := pf.MetaData().Schema
	fmt.Fprintf(out, "Parquet columns: %d\n", schema.NumColumns())
	for i := 0; i < schema.NumColumns(); i++ {
		col := schema.Column(i)
		fmt.Fprintf(out, "  %s (%s)\n", col.Name(), col.PhysicalType())
	}

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return fmt.Errorf("create arrow reader: %w", err)
	}
	arrowSchema, err := fr.Schema()
	if err != nil {
		return fmt.Errorf("read arrow schema: %w", err)
	}
	fmt.Fprintf(out, "Arrow fields: %d\n", len(arrowSchema.Fields()))
	for _, f := range arrowSchema.Fields() {
		fmt.Fprintf(out, "  %s: %s\n", f.Name, f.Type)
	}

	if limit <= 0 {
		return nil
	}

	reader, err := readers.NewParquetReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	fmt.Fprint(out, reader.TableSchema().String())
	names := reader.TableSchema().Names()
	for i := 0; i < limit; i++ {
		record, err := reader.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Record %d:", i+1)
		for _, name := range names {
			fmt.Fprintf(out, " %s=%s", name, core.FormatValue(record[name], ""))
		}
		fmt.Fprintln(out)
	}
	return nil
}
