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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/catalogetl/core"
)

func newMockDB(t *testing.T) (sqlmock.Sqlmock, []PostgresWriterOption) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	return mock, []PostgresWriterOption{WithPostgresDB(db), WithTableName("catalogo_netflix")}
}

func TestPostgresWriter_QuotedIdentifiersAndTransaction(t *testing.T) {
	mock, opts := newMockDB(t)
	schema := core.NewSchema(
		core.Field{Name: "Título", Type: core.TypeString, Nullable: true},
		core.Field{Name: "Data de Alteração", Type: core.TypeTimestamp, Nullable: true},
	)
	opts = append(opts,
		WithPostgresSchema(schema),
		WithCreateTable(true),
		WithTruncateTable(true),
		WithTransactionMode(true),
		WithPostgresBatchSize(10),
	)

	ts := time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC)
	insert := `INSERT INTO "catalogo_netflix" ("Título", "Data de Alteração") VALUES ($1, $2)`

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "catalogo_netflix" ("Título" TEXT, "Data de Alteração" TIMESTAMPTZ)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`TRUNCATE TABLE "catalogo_netflix"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(insert).WithArgs("Dark", ts).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs(nil, ts).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	writer, err := NewPostgresWriter(opts...)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, core.Record{"Título": "Dark", "Data de Alteração": ts}))
	require.NoError(t, writer.Write(ctx, core.Record{"Título": nil, "Data de Alteração": ts}))
	require.NoError(t, writer.Close())

	require.NoError(t, mock.ExpectationsWereMet())

	stats := writer.Stats()
	assert.Equal(t, int64(2), stats.RecordsWritten)
	assert.Equal(t, int64(1), stats.TransactionCount)
	assert.Equal(t, int64(1), stats.NullValueCounts["Título"])
}

func TestPostgresWriter_InsertFailureRollsBack(t *testing.T) {
	mock, opts := newMockDB(t)
	opts = append(opts, WithTransactionMode(true), WithPostgresBatchSize(1))

	boom := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "catalogo_netflix" ("a") VALUES ($1)`).WithArgs(int64(1)).WillReturnError(boom)
	mock.ExpectRollback()

	writer, err := NewPostgresWriter(opts...)
	require.NoError(t, err)

	err = writer.Write(context.Background(), core.Record{"a": 1})
	var pgErr *PostgresWriterError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "flush_batch", pgErr.Op)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())

	err = writer.Write(context.Background(), core.Record{"a": 2})
	assert.ErrorContains(t, err, "error state")
}

func TestPostgresWriter_Validation(t *testing.T) {
	_, err := NewPostgresWriter(WithTableName("t"))
	assert.ErrorContains(t, err, "dsn is required")

	_, err = NewPostgresWriter(WithPostgresDSN("postgres://localhost/db"))
	assert.ErrorContains(t, err, "table name is required")
}
