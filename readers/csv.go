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
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/catalogetl/core"
)

// CSVReaderError wraps structured error information for the CSV reader.
type CSVReaderError struct {
	Op     string
	Line   int    // 1-based input line, 0 when unknown
	Column string // Column whose value failed to parse
	Err    error
}

func (e *CSVReaderError) Error() string {
	switch {
	case e.Column != "":
		return fmt.Sprintf("csv reader %s (line %d, column %s): %v", e.Op, e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("csv reader %s (line %d): %v", e.Op, e.Line, e.Err)
	default:
		return fmt.Sprintf("csv reader %s: %v", e.Op, e.Err)
	}
}

func (e *CSVReaderError) Unwrap() error {
	return e.Err
}

// CSVReaderStats holds statistics about the CSV reader's performance.
type CSVReaderStats struct {
	RecordsRead     int64
	RowsSampled     int64
	ParseErrors     int64
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// CSVReaderOptions configures the CSV reader.
type CSVReaderOptions struct {
	Comma            rune // Field delimiter; 0 detects it from the first line
	Comment          rune
	LazyQuotes       bool
	TrimLeadingSpace bool
	HasHeaders       bool
	InferRows        int      // Rows sampled for column types; 0 samples the whole input
	NullValues       []string // Cell values read as null in addition to blank cells
}

// ReaderOptionCSV allows functional customization of CSVReader.
type ReaderOptionCSV func(*CSVReaderOptions)

// WithCSVComma fixes the field delimiter instead of detecting it.
func WithCSVComma(r rune) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Comma = r }
}

func WithCSVHasHeaders(hasHeaders bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.HasHeaders = hasHeaders }
}

func WithCSVTrimSpace(trim bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.TrimLeadingSpace = trim }
}

// WithCSVLazyQuotes tolerates bare quotes inside fields.
func WithCSVLazyQuotes(lazy bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.LazyQuotes = lazy }
}

// WithCSVInferRows limits how many rows are sampled to type the columns.
func WithCSVInferRows(n int) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.InferRows = n }
}

// WithCSVNullValues adds cell values that read as null, e.g. "NA".
func WithCSVNullValues(values ...string) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.NullValues = append([]string(nil), values...) }
}

const sniffSize = 64 * 1024

// delimiters tried when the comma is detected, in order of preference on ties.
var delimiters = []rune{';', ',', '\t', '|'}

type pendingRow struct {
	line   int
	fields []string
}

// CSVReader implements core.DataSource for delimited text files. Column types are inferred once
// from a sample of rows, then every cell of a column is parsed as that type.
type CSVReader struct {
	reader  *csv.Reader
	closer  io.Closer
	headers []string
	types   []core.ColumnType
	nulls   map[string]bool
	pending []pendingRow
	stats   CSVReaderStats
	opts    CSVReaderOptions
}

// NewCSVReader creates a CSVReader, reading the header and the inference sample up front.
func NewCSVReader(r io.ReadCloser, options ...ReaderOptionCSV) (*CSVReader, error) {
	opts := CSVReaderOptions{
		HasHeaders:       true,
		TrimLeadingSpace: true,
	}
	for _, opt := range options {
		opt(&opts)
	}

	br := bufio.NewReaderSize(r, sniffSize)
	if opts.Comma == 0 {
		opts.Comma = detectDelimiter(br)
	}

	csvReader := csv.NewReader(br)
	csvReader.Comma = opts.Comma
	csvReader.Comment = opts.Comment
	csvReader.LazyQuotes = opts.LazyQuotes
	csvReader.TrimLeadingSpace = opts.TrimLeadingSpace

	c := &CSVReader{
		reader: csvReader,
		closer: r,
		opts:   opts,
		nulls:  make(map[string]bool, len(opts.NullValues)),
		stats:  CSVReaderStats{NullValueCounts: make(map[string]int64)},
	}
	for _, v := range opts.NullValues {
		c.nulls[v] = true
	}

	if opts.HasHeaders {
		headers, err := csvReader.Read()
		if err != nil {
			return nil, &CSVReaderError{Op: "read_headers", Line: 1, Err: err}
		}
		c.headers = headers
	}

	if err := c.sample(); err != nil {
		return nil, err
	}
	return c, nil
}

// sample buffers up to InferRows rows and types each column from them.
func (c *CSVReader) sample() error {
	for c.opts.InferRows <= 0 || len(c.pending) < c.opts.InferRows {
		fields, err := c.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &CSVReaderError{Op: "sample", Line: errorLine(err), Err: err}
		}
		line, _ := c.reader.FieldPos(0)
		c.pending = append(c.pending, pendingRow{line: line, fields: fields})
	}
	c.stats.RowsSampled = int64(len(c.pending))

	width := len(c.headers)
	if width == 0 && len(c.pending) > 0 {
		width = len(c.pending[0].fields)
		for i := 0; i < width; i++ {
			c.headers = append(c.headers, "col_"+strconv.Itoa(i))
		}
	}

	c.types = make([]core.ColumnType, width)
	for i := range c.types {
		c.types[i] = c.inferColumn(i)
	}
	return nil
}

// inferColumn picks the narrowest type every non-null sampled value of column i parses as:
// bigint, then double, then boolean, falling back to string. An all-null column stays null.
func (c *CSVReader) inferColumn(i int) core.ColumnType {
	candidates := []core.ColumnType{core.TypeInteger, core.TypeFloat, core.TypeBoolean}
	seen := false
	for _, row := range c.pending {
		if i >= len(row.fields) || c.isNull(row.fields[i]) {
			continue
		}
		seen = true
		value := strings.TrimSpace(row.fields[i])
		kept := candidates[:0]
		for _, t := range candidates {
			if _, err := parseCell(value, t); err == nil {
				kept = append(kept, t)
			}
		}
		candidates = kept
		if len(candidates) == 0 {
			return core.TypeString
		}
	}
	if !seen {
		return core.TypeNull
	}
	return candidates[0]
}

// TableSchema implements core.SchemaProvider. Column order follows the header row.
func (c *CSVReader) TableSchema() core.Schema {
	fields := make([]core.Field, len(c.headers))
	for i, h := range c.headers {
		t := core.TypeNull
		if i < len(c.types) {
			t = c.types[i]
		}
		fields[i] = core.Field{Name: h, Type: t, Nullable: true}
	}
	return core.Schema{Fields: fields}
}

// Read implements the core.DataSource interface. A cell that does not parse as its column's type
// fails only its own row.
func (c *CSVReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() {
		c.stats.ReadDuration += time.Since(start)
		c.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &CSVReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	var row pendingRow
	if len(c.pending) > 0 {
		row = c.pending[0]
		c.pending = c.pending[1:]
	} else {
		fields, err := c.reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, &CSVReaderError{Op: "read_record", Line: errorLine(err), Err: err}
		}
		row.line, _ = c.reader.FieldPos(0)
		row.fields = fields
	}

	res := make(core.Record, len(row.fields))
	for i, val := range row.fields {
		name := c.columnName(i)
		if c.isNull(val) {
			c.stats.NullValueCounts[name]++
			res[name] = nil
			continue
		}
		v, err := parseCell(strings.TrimSpace(val), c.columnType(i))
		if err != nil {
			c.stats.ParseErrors++
			return nil, &CSVReaderError{Op: "parse_value", Line: row.line, Column: name, Err: err}
		}
		res[name] = v
	}

	c.stats.RecordsRead++
	return res, nil
}

// Close implements the core.DataSource interface.
func (c *CSVReader) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Stats returns CSV reader performance stats.
func (c *CSVReader) Stats() CSVReaderStats {
	return c.stats
}

// Comma returns the delimiter in use, detected or configured.
func (c *CSVReader) Comma() rune {
	return c.opts.Comma
}

func (c *CSVReader) isNull(value string) bool {
	return strings.TrimSpace(value) == "" || c.nulls[value]
}

func (c *CSVReader) columnName(i int) string {
	if i < len(c.headers) {
		return c.headers[i]
	}
	return "col_" + strconv.Itoa(i)
}

func (c *CSVReader) columnType(i int) core.ColumnType {
	if i < len(c.types) && c.types[i] != core.TypeNull {
		return c.types[i]
	}
	return core.TypeString
}

// parseCell converts a trimmed, non-null cell to t.
func parseCell(value string, t core.ColumnType) (interface{}, error) {
	switch t {
	case core.TypeInteger:
		return strconv.ParseInt(value, 10, 64)
	case core.TypeFloat:
		return strconv.ParseFloat(value, 64)
	case core.TypeBoolean:
		switch strings.ToLower(value) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", value)
	default:
		return value, nil
	}
}

// detectDelimiter counts candidate delimiters outside quotes on the first line and returns the
// most frequent one, or ',' when none occurs.
func detectDelimiter(br *bufio.Reader) rune {
	head, _ := br.Peek(sniffSize)
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}

	counts := make(map[rune]int, len(delimiters))
	inQuotes := false
	for _, r := range string(head) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best, bestCount := ',', 0
	for _, d := range delimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func errorLine(err error) int {
	if pe, ok := err.(*csv.ParseError); ok {
		return pe.Line
	}
	return 0
}
