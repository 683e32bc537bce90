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
	"sort"
	"sync"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/catalogetl/core"
)

// Package writers provides implementations of core.DataSink for writing tables to files and databases.
//
// This file implements a batching Parquet writer. The Arrow schema comes from a core.Schema when one
// is supplied and is otherwise inferred from the first record.

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "schema", "write_batch", "close_writer")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriter implements core.DataSink for Parquet files.
type ParquetWriter struct {
	file         *os.File
	writer       *pqarrow.FileWriter
	schema       *arrow.Schema
	fieldOrder   []string
	recordBuffer []core.Record
	stats        WriterStats
	errorState   bool
	closed       bool
	opts         *ParquetWriterOptions
	mu           sync.Mutex
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Compression  compress.Compression // Compression algorithm
	FieldOrder   []string             // Explicit field ordering
	TableSchema  *core.Schema         // Column layout; inferred from the first record when nil
	RowGroupSize int64                // Maximum rows per row group
	Metadata     map[string]string    // File key/value metadata
	Allocator    memory.Allocator     // Arrow allocator for batch builders
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithFieldOrder sets the explicit field ordering for an inferred schema.
func WithFieldOrder(fields []string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.FieldOrder = append([]string(nil), fields...)
	}
}

// WithTableSchema writes columns with the types of schema instead of inferring them.
func WithTableSchema(schema core.Schema) WriterOption {
	return func(opts *ParquetWriterOptions) {
		s := core.NewSchema(schema.Fields...)
		opts.TableSchema = &s
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithMetadata sets user metadata for the Parquet file.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

// WithWriterAllocator sets the Arrow allocator used while building batches.
func WithWriterAllocator(alloc memory.Allocator) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Allocator = alloc
	}
}

// NewParquetWriter creates a new Parquet writer for a file, creating parent directories.
func NewParquetWriter(filename string, options ...WriterOption) (*ParquetWriter, error) {
	opts := (&ParquetWriterOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}

	if dir := filepath.Dir(filename); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &ParquetWriterError{Op: "create_directory", Err: err}
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, &ParquetWriterError{Op: "open_file", Err: err}
	}

	return &ParquetWriter{
		file:         f,
		fieldOrder:   opts.FieldOrder,
		recordBuffer: make([]core.Record, 0, opts.BatchSize),
		stats:        WriterStats{NullValueCounts: make(map[string]int64)},
		opts:         opts,
	}, nil
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Write implements the core.DataSink interface.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if err := ctx.Err(); err != nil {
		return &ParquetWriterError{Op: "write", Err: err}
	}

	if p.schema == nil {
		if err := p.initialize(record); err != nil {
			p.errorState = true
			return err
		}
	}

	p.recordBuffer = append(p.recordBuffer, record)
	p.stats.RecordsWritten++

	if int64(len(p.recordBuffer)) >= p.opts.BatchSize {
		if err := p.flushBatch(); err != nil {
			p.errorState = true
			return err
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushBatch()
}

// Close implements the core.DataSink interface. A writer that saw no records still produces a
// valid file when its schema was supplied up front.
func (p *ParquetWriter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.writer == nil && p.opts.TableSchema != nil && !p.errorState {
		if err := p.initialize(nil); err != nil {
			p.file.Close()
			return err
		}
	}

	flushErr := p.flushBatch()

	if p.writer != nil {
		// closing the file writer closes the underlying file
		if err := p.writer.Close(); err != nil {
			return &ParquetWriterError{Op: "close_writer", Err: err}
		}
		p.writer = nil
		p.file = nil
		return flushErr
	}

	if err := p.file.Close(); err != nil && flushErr == nil {
		flushErr = &ParquetWriterError{Op: "close_file", Err: err}
	}
	p.file = nil
	return flushErr
}

func (opts *ParquetWriterOptions) withDefaults() *ParquetWriterOptions {
	result := &ParquetWriterOptions{}
	if opts != nil {
		*result = *opts
	}

	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	if result.RowGroupSize <= 0 {
		result.RowGroupSize = 10000
	}
	if result.Compression == 0 {
		result.Compression = compress.Codecs.Snappy
	}
	if result.Allocator == nil {
		result.Allocator = memory.NewGoAllocator()
	}
	return result
}

// initialize derives the Arrow schema and opens the file writer. record may be nil when the
// schema was supplied.
func (p *ParquetWriter) initialize(record core.Record) error {
	var fields []arrow.Field

	if p.opts.TableSchema != nil {
		p.fieldOrder = p.opts.TableSchema.Names()
		for _, f := range p.opts.TableSchema.Fields {
			fields = append(fields, arrow.Field{Name: f.Name, Type: arrowTypeFor(f.Type), Nullable: true})
		}
	} else {
		if p.fieldOrder == nil {
			for name := range record {
				p.fieldOrder = append(p.fieldOrder, name)
			}
			sort.Strings(p.fieldOrder)
		}
		for _, name := range p.fieldOrder {
			fields = append(fields, arrow.Field{Name: name, Type: arrowTypeFor(core.TypeOf(record[name])), Nullable: true})
		}
	}

	var md *arrow.Metadata
	if len(p.opts.Metadata) > 0 {
		m := arrow.MetadataFrom(p.opts.Metadata)
		md = &m
	}
	p.schema = arrow.NewSchema(fields, md)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
		parquet.WithAllocator(p.opts.Allocator),
	)
	writer, err := pqarrow.NewFileWriter(p.schema, p.file, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return &ParquetWriterError{Op: "create_writer", Err: err}
	}
	p.writer = writer
	return nil
}

// arrowTypeFor maps a column type onto the Arrow type it is stored as. Null columns are stored as strings.
func arrowTypeFor(t core.ColumnType) arrow.DataType {
	switch t {
	case core.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case core.TypeInteger:
		return arrow.PrimitiveTypes.Int64
	case core.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case core.TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	case core.TypeDate:
		return arrow.FixedWidthTypes.Date32
	case core.TypeBinary:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

// flushBatch writes the buffered records as one Arrow record batch (must hold mutex).
func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuffer) == 0 || p.writer == nil {
		return nil
	}

	start := time.Now()

	builder := array.NewRecordBuilder(p.opts.Allocator, p.schema)
	defer builder.Release()

	for _, record := range p.recordBuffer {
		for i, name := range p.fieldOrder {
			if err := p.appendValue(builder.Field(i), name, record[name]); err != nil {
				return &ParquetWriterError{Op: "append_value", Err: err}
			}
		}
	}

	rec := builder.NewRecord()
	defer rec.Release()

	if err := p.writer.Write(rec); err != nil {
		return &ParquetWriterError{Op: "write_batch", Err: err}
	}

	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	p.stats.LastFlushTime = time.Now()
	p.recordBuffer = p.recordBuffer[:0]
	return nil
}

// appendValue appends one cell, failing when the value does not fit the column type.
func (p *ParquetWriter) appendValue(builder array.Builder, name string, value interface{}) error {
	value = core.NormalizeValue(value)
	if value == nil {
		builder.AppendNull()
		p.stats.NullValueCounts[name]++
		return nil
	}

	mismatch := func() error {
		return fmt.Errorf("field %s: cannot store %T as %s", name, value, builder.Type())
	}

	switch b := builder.(type) {
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if !ok {
			return mismatch()
		}
		b.Append(v)
	case *array.Int64Builder:
		v, ok := value.(int64)
		if !ok {
			return mismatch()
		}
		b.Append(v)
	case *array.Float64Builder:
		switch v := value.(type) {
		case float64:
			b.Append(v)
		case int64:
			b.Append(float64(v))
		default:
			return mismatch()
		}
	case *array.TimestampBuilder:
		v, ok := value.(time.Time)
		if !ok {
			return mismatch()
		}
		b.Append(arrow.Timestamp(v.UnixMicro()))
	case *array.Date32Builder:
		v, ok := value.(time.Time)
		if !ok {
			return mismatch()
		}
		b.Append(arrow.Date32FromTime(v))
	case *array.BinaryBuilder:
		switch v := value.(type) {
		case []byte:
			b.Append(v)
		case string:
			b.AppendString(v)
		default:
			return mismatch()
		}
	case *array.StringBuilder:
		b.Append(core.FormatValue(value, ""))
	default:
		return fmt.Errorf("field %s: unsupported builder %T", name, builder)
	}
	return nil
}
