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

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "catalogetl",
	Short: "Export the Netflix originals catalog to CSV and S3",
	Long: `catalogetl reads the Netflix originals dataset, normalizes it (timestamp casts, ordering,
deduplication, Portuguese column names), writes a semicolon separated file and uploads it to S3.

Examples:
  catalogetl                          # same as "catalogetl run"
  catalogetl run --config prod.toml   # run with another config file
  catalogetl inspect data.parquet     # show a parquet file's layout`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCmd.RunE,
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.toml", "Path to the TOML configuration file")
	rootCmd.Flags().Bool("fail-exit", false, "Exit with status 1 when the pipeline result is false")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if err != errPipelineFailed {
			rootCmd.PrintErrln("Error:", err)
		}
		os.Exit(1)
	}
}
