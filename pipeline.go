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
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/aaronlmathis/catalogetl/core"
	"github.com/aaronlmathis/catalogetl/filter"
	"github.com/aaronlmathis/catalogetl/transform"
	"github.com/aaronlmathis/catalogetl/writers"
)

// Example usage:
//
//	pipeline, err := catalogetl.NewPipeline().
//	    From(parquetReader).
//	    Stage(transform.Cast("Premiere")).
//	    Stage(transform.SortBy(transform.Desc("Active"))).
//	    To(csvWriter).
//	    Build()
//	if err != nil { log.Fatal(err) }
//	result, err := pipeline.Execute(context.Background())

// SinkFactory opens the sink once the final schema is known.
type SinkFactory func(schema core.Schema) (core.DataSink, error)

// PipelineBuilder provides a fluent API for constructing table pipelines.
// Use NewPipeline() to create a new builder, then chain From, Stage, Transform, Filter, To and configuration methods.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			strategy: core.FailFast,
			logger:   zap.NewNop(),
		},
	}
}

// From sets the DataSource for the pipeline.
func (pb *PipelineBuilder) From(source core.DataSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// Stage appends table stages, run in the order added.
func (pb *PipelineBuilder) Stage(stages ...core.Stage) *PipelineBuilder {
	pb.pipeline.stages = append(pb.pipeline.stages, stages...)
	return pb
}

// Transform appends a record-level transformer as a stage.
func (pb *PipelineBuilder) Transform(name string, transformer core.Transformer) *PipelineBuilder {
	return pb.Stage(transform.Records(name, transformer))
}

// Filter appends a record filter as a stage.
func (pb *PipelineBuilder) Filter(name string, f core.Filter) *PipelineBuilder {
	return pb.Stage(filter.Where(name, f))
}

// To sets the DataSink for the pipeline.
func (pb *PipelineBuilder) To(sink core.DataSink) *PipelineBuilder {
	pb.pipeline.sinks = append(pb.pipeline.sinks, func(core.Schema) (core.DataSink, error) { return sink, nil })
	return pb
}

// ToFactory adds a sink opened with the schema of the final table. Sinks are written in the order added.
func (pb *PipelineBuilder) ToFactory(factory SinkFactory) *PipelineBuilder {
	pb.pipeline.sinks = append(pb.pipeline.sinks, factory)
	return pb
}

// WithErrorStrategy sets how record read errors are handled.
func (pb *PipelineBuilder) WithErrorStrategy(strategy core.ErrorStrategy) *PipelineBuilder {
	pb.pipeline.strategy = strategy
	return pb
}

// WithErrorHandler sets a custom error handler for CollectErrors.
func (pb *PipelineBuilder) WithErrorHandler(handler core.ErrorHandler) *PipelineBuilder {
	pb.pipeline.errorHandler = handler
	return pb
}

// WithLogger sets the logger stage progress is reported to.
func (pb *PipelineBuilder) WithLogger(logger *zap.Logger) *PipelineBuilder {
	if logger != nil {
		pb.pipeline.logger = logger
	}
	return pb
}

// Build validates and constructs the Pipeline from the builder.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	if pb.pipeline.source == nil {
		return nil, errors.New("pipeline requires a data source")
	}
	for i, s := range pb.pipeline.stages {
		if s == nil {
			return nil, errors.Newf("pipeline stage %d is nil", i)
		}
	}
	return pb.pipeline, nil
}

// Pipeline collects a source into a table, applies stages in order and writes the result to its sinks.
type Pipeline struct {
	source       core.DataSource
	stages       []core.Stage
	sinks        []SinkFactory
	strategy     core.ErrorStrategy
	errorHandler core.ErrorHandler
	logger       *zap.Logger
}

// StageStats records one stage's effect.
type StageStats struct {
	Name     string
	RowsIn   int
	RowsOut  int
	Duration time.Duration
}

// Result is the outcome of a pipeline run.
type Result struct {
	RowsRead    int
	RowsWritten int
	Stages      []StageStats
	Table       *core.Table
	Duration    time.Duration
}

// Execute runs the pipeline. The source is always closed; each sink is closed after it is written.
// The first failing stage stops the run.
func (p *Pipeline) Execute(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	table, err := core.Collect(ctx, p.source, p.strategy, p.errorHandler)
	closeErr := p.source.Close()
	if err != nil {
		return result, errors.Wrap(err, "read source")
	}
	if closeErr != nil {
		return result, errors.Wrap(closeErr, "close source")
	}
	result.RowsRead = table.Len()
	p.logger.Info("source collected", zap.Int("rows", table.Len()), zap.Int("columns", len(table.Schema.Fields)))

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrap(err, "pipeline cancelled")
		}

		stageStart := time.Now()
		in := table.Len()
		out, err := stage.Apply(ctx, table)
		if err != nil {
			p.logger.Error("stage failed", zap.String("stage", stage.Name()), zap.Error(err))
			return result, &core.StageError{Stage: stage.Name(), Err: err}
		}
		table = out

		stats := StageStats{Name: stage.Name(), RowsIn: in, RowsOut: table.Len(), Duration: time.Since(stageStart)}
		result.Stages = append(result.Stages, stats)
		p.logger.Debug("stage applied",
			zap.String("stage", stats.Name),
			zap.Int("rows_in", stats.RowsIn),
			zap.Int("rows_out", stats.RowsOut),
			zap.Duration("duration", stats.Duration))
	}
	result.Table = table

	for i, factory := range p.sinks {
		sink, err := factory(table.Schema)
		if err != nil {
			return result, errors.Wrapf(err, "open sink %d", i)
		}
		if err := writers.WriteTable(ctx, sink, table); err != nil {
			return result, errors.Wrapf(err, "write sink %d", i)
		}
		if i == 0 {
			result.RowsWritten = table.Len()
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
