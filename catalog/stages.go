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

	"go.uber.org/zap"

	"github.com/aaronlmathis/catalogetl/core"
	"github.com/aaronlmathis/catalogetl/filter"
	"github.com/aaronlmathis/catalogetl/transform"
	"github.com/aaronlmathis/catalogetl/validators"
)

// Stages returns the catalog transformation chain in execution order.
func Stages(logger *zap.Logger) []core.Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return []core.Stage{
		validators.RequiredColumns(ReadColumns...),
		transform.Cast(ColPremiere),
		transform.Cast(ColInclusionDate),
		validators.ColumnTypes(core.TypeTimestamp, ColPremiere, ColInclusionDate),
		transform.SortBy(transform.Desc(ColActive), transform.Desc(ColGenre)),
		transform.DropDuplicates(),
		replaceTBA(logger),
		transform.Rename(RenameTable...),
		transform.CastInto(ColDataInclusao, ColDataAlteracao),
		validators.ColumnTypes(core.TypeTimestamp, ColDataAlteracao),
	}
}

// replaceTBA substitutes the Seasons placeholder and logs how many rows hold it afterwards.
func replaceTBA(logger *zap.Logger) core.Stage {
	replace := transform.Replace(ColSeasons, SeasonsTBA, Placeholder)
	return core.NewStage(replace.Name(), func(ctx context.Context, table *core.Table) (*core.Table, error) {
		out, err := replace.Apply(ctx, table)
		if err != nil {
			return nil, err
		}
		n, err := out.Count(ctx, filter.Equals(ColSeasons, Placeholder))
		if err != nil {
			return nil, err
		}
		logger.Info("seasons placeholder applied", zap.Int("rows", n), zap.String("value", Placeholder))
		return out, nil
	})
}
