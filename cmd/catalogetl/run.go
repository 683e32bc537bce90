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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aaronlmathis/catalogetl/catalog"
	"github.com/aaronlmathis/catalogetl/config"
	"github.com/aaronlmathis/catalogetl/engine"
	"github.com/aaronlmathis/catalogetl/logging"
	"github.com/aaronlmathis/catalogetl/objectstore"
)

var errPipelineFailed = errors.New("pipeline failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the catalog export once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		failExit, _ := cmd.Flags().GetBool("fail-exit")

		ok := runCatalog(cmd.Context(), cmd.OutOrStdout(), cfgPath)
		if !ok && failExit {
			return errPipelineFailed
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("fail-exit", false, "Exit with status 1 when the pipeline result is false")
}

// runCatalog runs one export and prints its result. The engine session is stopped on every path
// that started it.
func runCatalog(ctx context.Context, out io.Writer, cfgPath string) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(out, "Configuration error: %v\n", err)
		fmt.Fprintf(out, "Pipeline result: %t\n", false)
		return false
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		fmt.Fprintf(out, "Logger error: %v\n", err)
		fmt.Fprintf(out, "Pipeline result: %t\n", false)
		return false
	}
	defer logger.Sync()

	var jobOpts []catalog.JobOption
	engineOpts := engine.Options{
		AppName:     cfg.Engine.AppName,
		Master:      cfg.Engine.Master,
		MemoryLimit: cfg.MemoryBytes(),
		Cores:       cfg.Engine.Cores,
		Logger:      logger,
	}
	if objectstore.IsURI(cfg.File.FilePath) || !cfg.S3.SkipUpload {
		client, err := objectstore.New(ctx, objectstore.Options{
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Endpoint:        cfg.S3.Endpoint,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			logger.Error("object store unavailable", zap.Error(err))
		} else {
			engineOpts.Downloader = client
			jobOpts = append(jobOpts, catalog.WithUploader(client))
		}
	}

	session, err := engine.Start(engineOpts)
	if err != nil {
		logger.Error("engine start failed", zap.Error(err))
		fmt.Fprintf(out, "Pipeline result: %t\n", false)
		return false
	}
	defer func() {
		if err := session.Stop(); err != nil {
			logger.Warn("engine stop", zap.Error(err))
		}
		fmt.Fprintln(out, "Engine stopped")
	}()

	jobOpts = append(jobOpts, catalog.WithLogger(logger))
	ok := catalog.NewJob(cfg, session, jobOpts...).Run(ctx)
	fmt.Fprintf(out, "Pipeline result: %t\n", ok)
	return ok
}
