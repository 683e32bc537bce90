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

import "github.com/aaronlmathis/catalogetl/transform"

// Source columns of the Netflix originals dataset.
const (
	ColTitle          = "Title"
	ColGenre          = "Genre"
	ColGenreLabels    = "GenreLabels"
	ColPremiere       = "Premiere"
	ColSeasons        = "Seasons"
	ColSeasonsParsed  = "SeasonsParsed"
	ColEpisodesParsed = "EpisodesParsed"
	ColLength         = "Length"
	ColMinLength      = "MinLength"
	ColMaxLength      = "MaxLength"
	ColStatus         = "Status"
	ColActive         = "Active"
	ColTable          = "Table"
	ColLanguage       = "Language"
	ColInclusionDate  = "dt_inclusao"
)

// Display columns written to the output.
const (
	ColDataInclusao  = "Data de Inclusão"
	ColDataAlteracao = "Data de Alteração"
	ColTemporada     = "Temporada"
)

const (
	// SeasonsTBA marks a series whose season count is not yet known.
	SeasonsTBA = "TBA"
	// Placeholder replaces SeasonsTBA in the output.
	Placeholder = "a ser anunciado"
)

// RenameTable maps source columns to their Portuguese display names, in application order.
var RenameTable = []transform.Renaming{
	{From: ColTitle, To: "Título"},
	{From: ColGenre, To: "Gênero"},
	{From: ColGenreLabels, To: "Labels de Gênero"},
	{From: ColPremiere, To: "Data de Lançamento"},
	{From: ColSeasons, To: ColTemporada},
	{From: ColSeasonsParsed, To: "Temporadas Parsadas"},
	{From: ColEpisodesParsed, To: "Episódios Parsados"},
	{From: ColLength, To: "Duração"},
	{From: ColMinLength, To: "Duração Mínima"},
	{From: ColMaxLength, To: "Duração Máxima"},
	{From: ColStatus, To: "Status"},
	{From: ColActive, To: "Ativo"},
	{From: ColTable, To: "Tabela"},
	{From: ColLanguage, To: "Idioma"},
	{From: ColInclusionDate, To: ColDataInclusao},
}

// ReadColumns lists the source columns the stage chain reads. Every other column is optional and
// passes through (renamed when present).
var ReadColumns = []string{ColPremiere, ColInclusionDate, ColActive, ColGenre, ColSeasons}
