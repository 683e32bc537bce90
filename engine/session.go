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

package engine

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"sync"

	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/aaronlmathis/catalogetl/core"
	"github.com/aaronlmathis/catalogetl/objectstore"
	"github.com/aaronlmathis/catalogetl/readers"
)

// Package engine owns the per-run resources the pipeline reads through: the Arrow allocator,
// the memory and core budget, and a scratch directory for downloaded inputs.

// ErrSessionStopped is returned when a stopped session is used.
var ErrSessionStopped = errors.New("engine session stopped")

var masterPattern = regexp.MustCompile(`^local(?:\[(\d+|\*)\])?$`)

// Downloader fetches an object to a local path.
type Downloader interface {
	Download(ctx context.Context, bucket, key, dest string) (*objectstore.Transfer, error)
}

// Options sizes a session.
type Options struct {
	AppName     string
	Master      string
	MemoryLimit int64 // bytes; 0 = unlimited
	Cores       int
	ScratchRoot string // parent of the scratch directory; os.TempDir() when empty
	Downloader  Downloader
	Logger      *zap.Logger
}

// ParseMaster returns the worker count encoded in a master string: "local" is 1, "local[N]" is N
// and "local[*]" is the number of CPUs.
func ParseMaster(master string) (int, error) {
	m := masterPattern.FindStringSubmatch(master)
	if m == nil {
		return 0, fmt.Errorf("unsupported master %q: want local or local[N]", master)
	}
	switch m[1] {
	case "":
		return 1, nil
	case "*":
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("unsupported master %q: worker count must be positive", master)
	}
	return n, nil
}

// Session is a started engine.
type Session struct {
	opts    Options
	alloc   *memory.CheckedAllocator
	scratch string
	workers int
	logger  *zap.Logger

	mu      sync.Mutex
	stopped bool
}

// Start validates opts and allocates the session's resources.
func Start(opts Options) (*Session, error) {
	workers, err := ParseMaster(opts.Master)
	if err != nil {
		return nil, errors.WithHint(err, "set engine.master to \"local\" or \"local[N]\"")
	}
	if opts.Cores > 0 && opts.Cores < workers {
		workers = opts.Cores
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	scratch, err := os.MkdirTemp(opts.ScratchRoot, "catalogetl-")
	if err != nil {
		return nil, errors.Wrap(err, "create scratch directory")
	}

	s := &Session{
		opts:    opts,
		alloc:   memory.NewCheckedAllocator(memory.NewGoAllocator()),
		scratch: scratch,
		workers: workers,
		logger:  logger,
	}

	memLabel := "unlimited"
	if opts.MemoryLimit > 0 {
		memLabel = humanize.IBytes(uint64(opts.MemoryLimit))
	}
	logger.Info("engine started",
		zap.String("app", opts.AppName),
		zap.String("master", opts.Master),
		zap.Int("workers", workers),
		zap.String("memory", memLabel),
		zap.String("scratch", scratch))

	return s, nil
}

// Workers returns the effective decoding parallelism.
func (s *Session) Workers() int {
	return s.workers
}

// ScratchDir returns the session's scratch directory.
func (s *Session) ScratchDir() string {
	return s.scratch
}

// Allocator returns the session's Arrow allocator.
func (s *Session) Allocator() memory.Allocator {
	return s.alloc
}

// ReaderOptions returns the Parquet reader options implied by the session sizing.
func (s *Session) ReaderOptions() []readers.ReaderOption {
	opts := []readers.ReaderOption{
		readers.WithAllocator(s.alloc),
		readers.WithParallelRead(s.workers > 1),
	}
	if s.opts.MemoryLimit > 0 {
		opts = append(opts, readers.WithMemoryLimit(s.opts.MemoryLimit))
	}
	return opts
}

// Open returns a source for a local path or an s3:// URI. Remote inputs are downloaded into the
// scratch directory first.
func (s *Session) Open(ctx context.Context, input string) (core.DataSource, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return nil, ErrSessionStopped
	}

	local := input
	if objectstore.IsURI(input) {
		if s.opts.Downloader == nil {
			return nil, errors.Newf("no object store configured to fetch %s", input)
		}
		bucket, key, err := objectstore.ParseURI(input)
		if err != nil {
			return nil, err
		}
		local = filepath.Join(s.scratch, "input", path.Base(key))
		tr, err := s.opts.Downloader.Download(ctx, bucket, key, local)
		if err != nil {
			return nil, errors.Wrapf(err, "download %s", input)
		}
		s.logger.Info("input downloaded",
			zap.String("uri", input),
			zap.String("size", humanize.Bytes(uint64(tr.Bytes))),
			zap.Duration("duration", tr.Duration))
	}

	return readers.Open(local, s.ReaderOptions()...)
}

// Stop removes the scratch directory and reports Arrow memory still allocated. It is safe to call
// more than once.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	if leaked := s.alloc.CurrentAlloc(); leaked > 0 {
		s.logger.Warn("arrow memory still allocated at stop",
			zap.String("bytes", humanize.IBytes(uint64(leaked))))
	}
	if err := os.RemoveAll(s.scratch); err != nil {
		return errors.Wrap(err, "remove scratch directory")
	}
	s.logger.Info("engine stopped", zap.String("app", s.opts.AppName))
	return nil
}
