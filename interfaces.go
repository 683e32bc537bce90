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
	"github.com/aaronlmathis/catalogetl/core"
)

// Package catalogetl is a small table ETL library: a source is collected into an in-memory
// table, run through an ordered chain of stages and written to a sink.
//
// This file re-exports the core types so callers of the pipeline builder need a single import.

type (
	Record        = core.Record
	Schema        = core.Schema
	Table         = core.Table
	DataSource    = core.DataSource
	DataSink      = core.DataSink
	Transformer   = core.Transformer
	Filter        = core.Filter
	Stage         = core.Stage
	ErrorHandler  = core.ErrorHandler
	ErrorStrategy = core.ErrorStrategy
)

const (
	FailFast      = core.FailFast
	SkipErrors    = core.SkipErrors
	CollectErrors = core.CollectErrors
)
