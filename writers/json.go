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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aaronlmathis/catalogetl/core"
)

// JSONWriterError wraps JSON lines write errors with context.
type JSONWriterError struct {
	Op  string
	Err error
}

func (e *JSONWriterError) Error() string {
	return fmt.Sprintf("json writer %s: %v", e.Op, e.Err)
}

func (e *JSONWriterError) Unwrap() error {
	return e.Err
}

// JSONWriterOptions configures JSON lines output.
type JSONWriterOptions struct {
	TimeFormat string
}

// WriterOptionJSON is a functional option.
type WriterOptionJSON func(*JSONWriterOptions)

// WithJSONTimeFormat renders timestamps as strings with layout.
func WithJSONTimeFormat(layout string) WriterOptionJSON {
	return func(opts *JSONWriterOptions) {
		opts.TimeFormat = layout
	}
}

// JSONWriter implements core.DataSink for JSON lines files
type JSONWriter struct {
	writer         *bufio.Writer
	closer         io.Closer
	options        JSONWriterOptions
	recordsWritten int64
	mu             sync.Mutex
}

// NewJSONWriter creates a new JSON writer for line-delimited JSON output
func NewJSONWriter(w io.WriteCloser, opts ...WriterOptionJSON) *JSONWriter {
	options := JSONWriterOptions{TimeFormat: core.DefaultTimeLayout}
	for _, opt := range opts {
		opt(&options)
	}
	return &JSONWriter{
		writer:  bufio.NewWriter(w),
		closer:  w,
		options: options,
	}
}

// Write implements the core.DataSink interface
func (j *JSONWriter) Write(ctx context.Context, record core.Record) error {
	if err := ctx.Err(); err != nil {
		return &JSONWriterError{Op: "write", Err: err}
	}

	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		if ts, ok := v.(time.Time); ok {
			out[k] = ts.UTC().Format(j.options.TimeFormat)
			continue
		}
		out[k] = v
	}

	data, err := json.Marshal(out)
	if err != nil {
		return &JSONWriterError{Op: "marshal", Err: err}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.writer.Write(append(data, '\n')); err != nil {
		return &JSONWriterError{Op: "write_line", Err: err}
	}
	j.recordsWritten++
	return nil
}

// Flush implements the core.DataSink interface
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return &JSONWriterError{Op: "flush", Err: err}
	}
	return nil
}

// Close implements the core.DataSink interface
func (j *JSONWriter) Close() error {
	flushErr := j.Flush()
	var closeErr error
	if j.closer != nil {
		closeErr = j.closer.Close()
	}
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// RecordsWritten reports how many lines were written.
func (j *JSONWriter) RecordsWritten() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.recordsWritten
}
