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

package catalog

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aaronlmathis/catalogetl"
	"github.com/aaronlmathis/catalogetl/config"
	"github.com/aaronlmathis/catalogetl/core"
	"github.com/aaronlmathis/catalogetl/filter"
	"github.com/aaronlmathis/catalogetl/objectstore"
	"github.com/aaronlmathis/catalogetl/writers"
)

// Opener returns a source for the configured input path.
type Opener interface {
	Open(ctx context.Context, path string) (core.DataSource, error)
}

// Uploader puts a local file into a bucket.
type Uploader interface {
	Upload(ctx context.Context, localPath, bucket, key string, opts ...objectstore.UploadOption) (*objectstore.Transfer, error)
}

// Job runs the catalog export once per call to Run.
type Job struct {
	cfg      *config.Config
	opener   Opener
	uploader Uploader
	db       *sql.DB
	logger   *zap.Logger
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithUploader replaces the S3 client built from the configuration.
func WithUploader(u Uploader) JobOption {
	return func(j *Job) { j.uploader = u }
}

// WithMirrorDB mirrors the output table into db instead of dialing postgres.dsn.
func WithMirrorDB(db *sql.DB) JobOption {
	return func(j *Job) { j.db = db }
}

// WithLogger sets the job logger.
func WithLogger(logger *zap.Logger) JobOption {
	return func(j *Job) { j.logger = logger }
}

// NewJob builds a job reading through opener.
func NewJob(cfg *config.Config, opener Opener, opts ...JobOption) *Job {
	j := &Job{cfg: cfg, opener: opener, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Report summarizes a successful run.
type Report struct {
	RunID      string
	OutputPath string
	RowsRead   int
	RowsOut    int
	Uploaded   *objectstore.Transfer
	Duration   time.Duration
}

// Run executes the job and reports success. Every failure is logged and collapses to false.
func (j *Job) Run(ctx context.Context) bool {
	_, err := j.Execute(ctx)
	return err == nil
}

// Execute runs the job and returns its report or the first error.
func (j *Job) Execute(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	logger := j.logger.With(zap.String("run_id", report.RunID))

	fail := func(step string, err error) (*Report, error) {
		logger.Error("pipeline failed", zap.String("step", step), zap.Error(err))
		return nil, errors.Wrap(err, step)
	}

	uploader, err := j.resolveUploader(ctx)
	if err != nil {
		return fail("init object store", err)
	}

	format, err := writers.ParseOutputFormat(j.cfg.Output.Format)
	if err != nil {
		return fail("output format", err)
	}
	report.OutputPath = writers.OutputPath(j.cfg.Output.Dir, j.cfg.Output.BaseName, format)

	src, err := j.opener.Open(ctx, j.cfg.File.FilePath)
	if err != nil {
		return fail("open input", err)
	}

	builder := catalogetl.NewPipeline().
		From(src).
		Stage(Stages(logger)...).
		WithLogger(logger).
		ToFactory(func(schema core.Schema) (core.DataSink, error) {
			return writers.Create(format, report.OutputPath, writers.FileOptions{
				Delimiter:  j.cfg.DelimiterRune(),
				TimeFormat: j.cfg.Output.TimestampFormat,
				Schema:     schema,
			})
		})
	if j.db != nil || j.cfg.Postgres.DSN != "" {
		builder = builder.ToFactory(j.mirrorSink)
	}

	pipeline, err := builder.Build()
	if err != nil {
		src.Close()
		return fail("build pipeline", err)
	}

	result, err := pipeline.Execute(ctx)
	if err != nil {
		return fail("execute pipeline", err)
	}
	report.RowsRead = result.RowsRead
	report.RowsOut = result.RowsWritten
	j.logResult(ctx, logger, result)

	if uploader == nil {
		logger.Info("upload skipped", zap.String("path", report.OutputPath))
	} else {
		tr, err := uploader.Upload(ctx, report.OutputPath, j.cfg.S3.Bucket, j.cfg.S3.Key,
			objectstore.WithMetadata(map[string]string{"run-id": report.RunID}),
			objectstore.WithContentType(contentType(format)))
		if err != nil {
			return fail("upload", err)
		}
		report.Uploaded = tr
		logger.Info("file uploaded",
			zap.String("uri", "s3://"+tr.Bucket+"/"+tr.Key),
			zap.String("size", humanize.Bytes(uint64(tr.Bytes))),
			zap.Duration("duration", tr.Duration))
	}

	report.Duration = time.Since(start)
	logger.Info("pipeline finished", zap.Duration("duration", report.Duration))
	return report, nil
}

func (j *Job) resolveUploader(ctx context.Context) (Uploader, error) {
	if j.cfg.S3.SkipUpload {
		return nil, nil
	}
	if j.uploader != nil {
		return j.uploader, nil
	}
	client, err := objectstore.New(ctx, objectstore.Options{
		Region:          j.cfg.S3.Region,
		AccessKeyID:     j.cfg.S3.AccessKeyID,
		SecretAccessKey: j.cfg.S3.SecretAccessKey,
		Endpoint:        j.cfg.S3.Endpoint,
		UsePathStyle:    j.cfg.S3.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	j.uploader = client
	return client, nil
}

func (j *Job) mirrorSink(schema core.Schema) (core.DataSink, error) {
	opts := []writers.PostgresWriterOption{
		writers.WithTableName(j.cfg.Postgres.Table),
		writers.WithPostgresSchema(schema),
		writers.WithCreateTable(true),
		writers.WithTruncateTable(true),
		writers.WithTransactionMode(true),
	}
	if j.db != nil {
		opts = append(opts, writers.WithPostgresDB(j.db))
	} else {
		opts = append(opts, writers.WithPostgresDSN(j.cfg.Postgres.DSN))
	}
	return writers.NewPostgresWriter(opts...)
}

func (j *Job) logResult(ctx context.Context, logger *zap.Logger, result *catalogetl.Result) {
	for _, st := range result.Stages {
		if st.Name == "drop_duplicates" {
			logger.Info("duplicates removed",
				zap.Int("rows_before", st.RowsIn),
				zap.Int("rows_after", st.RowsOut))
		}
	}

	nulls, err := result.Table.Count(ctx, filter.Not(filter.NotNull(ColDataAlteracao)))
	if err == nil && nulls > 0 {
		logger.Warn("rows without a change timestamp", zap.String("column", ColDataAlteracao), zap.Int("rows", nulls))
	}

	logger.Info("output written",
		zap.Int("rows", result.RowsWritten),
		zap.Strings("columns", result.Table.Schema.Names()))
}

func contentType(format writers.OutputFormat) string {
	switch format {
	case writers.FormatJSON:
		return "application/x-ndjson"
	case writers.FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Summary renders the report on one line.
func (r *Report) Summary() string {
	var b strings.Builder
	b.WriteString(humanize.Comma(int64(r.RowsOut)))
	b.WriteString(" rows written to ")
	b.WriteString(r.OutputPath)
	if r.Uploaded != nil {
		b.WriteString(" and uploaded to s3://")
		b.WriteString(r.Uploaded.Bucket + "/" + r.Uploaded.Key)
	}
	return b.String()
}
