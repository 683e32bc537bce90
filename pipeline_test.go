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

package catalogetl

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aaronlmathis/catalogetl/core"
	"github.com/aaronlmathis/catalogetl/filter"
	"github.com/aaronlmathis/catalogetl/transform"
)

type memorySource struct {
	rows   []Record
	pos    int
	closed bool
}

func (m *memorySource) Read(ctx context.Context) (Record, error) {
	if m.pos >= len(m.rows) {
		return nil, io.EOF
	}
	r := m.rows[m.pos]
	m.pos++
	return r, nil
}

func (m *memorySource) Close() error {
	m.closed = true
	return nil
}

type memorySink struct {
	rows    []Record
	flushed bool
	closed  bool
}

func (m *memorySink) Write(ctx context.Context, r Record) error {
	m.rows = append(m.rows, r)
	return nil
}

func (m *memorySink) Flush() error {
	m.flushed = true
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func TestPipeline_RunsStagesInOrder(t *testing.T) {
	source := &memorySource{rows: []Record{
		{"Genre": "Comedy", "Seasons": "TBA"},
		{"Genre": "Drama", "Seasons": "1"},
		{"Genre": "Comedy", "Seasons": "TBA"},
		{"Genre": nil, "Seasons": "2"},
	}}
	sink := &memorySink{}
	var schemaSeen core.Schema

	pipeline, err := NewPipeline().
		From(source).
		Stage(transform.SortBy(transform.Desc("Genre"))).
		Stage(transform.DropDuplicates()).
		Filter("has_genre", filter.NotNull("Genre")).
		Stage(transform.Replace("Seasons", "TBA", "a ser anunciado")).
		ToFactory(func(s core.Schema) (core.DataSink, error) {
			schemaSeen = s
			return sink, nil
		}).
		WithLogger(zaptest.NewLogger(t)).
		Build()
	require.NoError(t, err)

	result, err := pipeline.Execute(context.Background())
	require.NoError(t, err)

	assert.True(t, source.closed)
	assert.True(t, sink.flushed)
	assert.True(t, sink.closed)
	assert.Equal(t, []string{"Genre", "Seasons"}, schemaSeen.Names())
	assert.Equal(t, []Record{
		{"Genre": "Drama", "Seasons": "1"},
		{"Genre": "Comedy", "Seasons": "a ser anunciado"},
	}, sink.rows)

	assert.Equal(t, 4, result.RowsRead)
	assert.Equal(t, 2, result.RowsWritten)
	require.Len(t, result.Stages, 4)
	assert.Equal(t, 4, result.Stages[1].RowsIn)
	assert.Equal(t, 3, result.Stages[1].RowsOut)
}

func TestPipeline_StageErrorStopsRun(t *testing.T) {
	source := &memorySource{rows: []Record{{"Active": true}}}
	sink := &memorySink{}

	pipeline, err := NewPipeline().
		From(source).
		Stage(transform.Cast("Active")).
		To(sink).
		Build()
	require.NoError(t, err)

	_, err = pipeline.Execute(context.Background())
	var stageErr *core.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "cast(Active)", stageErr.Stage)
	assert.ErrorIs(t, err, transform.ErrNotCastable)
	assert.Empty(t, sink.rows)
	assert.False(t, sink.closed)
	assert.True(t, source.closed)
}

func TestPipeline_BuildRequiresSource(t *testing.T) {
	_, err := NewPipeline().Build()
	assert.ErrorContains(t, err, "data source")
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline, err := NewPipeline().From(&memorySource{}).Build()
	require.NoError(t, err)
	_, err = pipeline.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
