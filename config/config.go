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

package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/aaronlmathis/catalogetl/engine"
	"github.com/aaronlmathis/catalogetl/writers"
)

// EnvPrefix prefixes environment overrides, e.g. CATALOGETL_S3_S3_BUCKET.
const EnvPrefix = "CATALOGETL"

// Config is the job configuration. It is loaded once and passed by pointer; nothing mutates it
// after Load returns.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	File     FileConfig     `mapstructure:"file"`
	Output   OutputConfig   `mapstructure:"output"`
	S3       S3Config       `mapstructure:"s3"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Log      LogConfig      `mapstructure:"log"`
}

// EngineConfig sizes the engine session.
type EngineConfig struct {
	Master  string `mapstructure:"master"`
	AppName string `mapstructure:"app_name"`
	Memory  string `mapstructure:"memory"`
	Cores   int    `mapstructure:"cores"`
}

// FileConfig locates the input dataset.
type FileConfig struct {
	FilePath string `mapstructure:"file_path"`
}

// OutputConfig controls the written file.
type OutputConfig struct {
	Dir             string `mapstructure:"dir"`
	BaseName        string `mapstructure:"base_name"`
	Format          string `mapstructure:"format"`
	Delimiter       string `mapstructure:"delimiter"`
	TimestampFormat string `mapstructure:"timestamp_format"`
}

// S3Config holds the upload target and its static credentials.
type S3Config struct {
	Bucket          string `mapstructure:"s3_bucket"`
	Key             string `mapstructure:"s3_key"`
	AccessKeyID     string `mapstructure:"aws_access_key_id"`
	SecretAccessKey string `mapstructure:"aws_secret_access_key"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	SkipUpload      bool   `mapstructure:"skip_upload"`
}

// PostgresConfig enables the optional table mirror when DSN is set.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// SetDefaults registers a default for every key so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine.master", "local")
	v.SetDefault("engine.app_name", "Netflix - Python")
	v.SetDefault("engine.memory", "2g")
	v.SetDefault("engine.cores", 2)

	v.SetDefault("file.file_path", "")

	v.SetDefault("output.dir", "saida_csv")
	v.SetDefault("output.base_name", "Netflix - Python")
	v.SetDefault("output.format", string(writers.FormatCSV))
	v.SetDefault("output.delimiter", ";")
	v.SetDefault("output.timestamp_format", "2006-01-02T15:04:05.000Z07:00")

	v.SetDefault("s3.s3_bucket", "")
	v.SetDefault("s3.s3_key", "")
	v.SetDefault("s3.aws_access_key_id", "")
	v.SetDefault("s3.aws_secret_access_key", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.use_path_style", false)
	v.SetDefault("s3.skip_upload", false)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "catalogo_netflix")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// New returns a viper instance with defaults and environment overrides bound.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the TOML file at path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config file %s", path)
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates configuration from a prepared viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing or malformed setting.
func (c *Config) Validate() error {
	if c.File.FilePath == "" {
		return errors.WithHint(errors.New("file.file_path is required"),
			"point it at the catalog parquet file or an s3:// uri")
	}
	if _, err := engine.ParseMaster(c.Engine.Master); err != nil {
		return errors.Wrap(err, "engine.master")
	}
	if c.Engine.Cores < 1 {
		return errors.Newf("engine.cores must be positive, got %d", c.Engine.Cores)
	}
	if _, err := ParseMemory(c.Engine.Memory); err != nil {
		return errors.Wrap(err, "engine.memory")
	}
	if _, err := writers.ParseOutputFormat(c.Output.Format); err != nil {
		return errors.Wrap(err, "output.format")
	}
	if utf8.RuneCountInString(c.Output.Delimiter) != 1 {
		return errors.Newf("output.delimiter must be a single character, got %q", c.Output.Delimiter)
	}
	if c.Output.BaseName == "" {
		return errors.New("output.base_name is required")
	}

	if c.S3.SkipUpload {
		return nil
	}
	for _, req := range []struct{ key, value string }{
		{"s3.s3_bucket", c.S3.Bucket},
		{"s3.s3_key", c.S3.Key},
		{"s3.aws_access_key_id", c.S3.AccessKeyID},
		{"s3.aws_secret_access_key", c.S3.SecretAccessKey},
	} {
		if req.value == "" {
			return errors.WithHintf(errors.Newf("%s is required", req.key),
				"set it in the config file or as %s_%s", EnvPrefix, envKey(req.key))
		}
	}
	return nil
}

// MemoryBytes returns the parsed engine memory budget.
func (c *Config) MemoryBytes() int64 {
	n, _ := ParseMemory(c.Engine.Memory)
	return n
}

// DelimiterRune returns the output delimiter.
func (c *Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Output.Delimiter)
	return r
}

// ParseMemory parses a JVM-style size ("512m", "2g") into bytes. Single-letter suffixes are
// binary units; an empty string means no limit.
func ParseMemory(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, nil
	}
	if last := s[len(s)-1]; strings.IndexByte("kmgt", last) >= 0 {
		s += "i"
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size %q: %w", s, err)
	}
	return int64(n), nil
}

func envKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
