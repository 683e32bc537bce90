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

package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Package objectstore moves files between the local disk and S3 (or an S3-compatible endpoint).
//
// The client uses static credentials and never retries: a failed call is reported to the caller.

// StoreError provides structured error information for object store operations
type StoreError struct {
	Op     string // Operation that failed (e.g., "load_config", "put_object", "get_object")
	Bucket string
	Key    string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Bucket == "" {
		return fmt.Sprintf("objectstore %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("objectstore %s s3://%s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Options configures the S3 client.
type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Endpoint        string // Custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing
	Timeout         time.Duration
}

// Client uploads and downloads objects.
type Client struct {
	s3   *s3.Client
	opts Options
}

// Transfer describes a completed upload or download.
type Transfer struct {
	Bucket   string
	Key      string
	Bytes    int64
	ETag     string
	Duration time.Duration
}

// New builds a client from static credentials. Missing credentials are an error rather than a
// fallback to the default provider chain.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
		return nil, &StoreError{Op: "credentials", Err: fmt.Errorf("access key id and secret access key are required")}
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)),
		config.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, &StoreError{Op: "load_config", Err: err}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Client{s3: client, opts: opts}, nil
}

// UploadOption configures one upload.
type UploadOption func(*s3.PutObjectInput)

// WithMetadata attaches user metadata to the uploaded object.
func WithMetadata(metadata map[string]string) UploadOption {
	return func(in *s3.PutObjectInput) {
		if in.Metadata == nil {
			in.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			in.Metadata[k] = v
		}
	}
}

// WithContentType sets the object's content type.
func WithContentType(contentType string) UploadOption {
	return func(in *s3.PutObjectInput) {
		in.ContentType = aws.String(contentType)
	}
}

// ObjectKey returns key, or key joined with the file's base name when key ends with "/".
func ObjectKey(key, localPath string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key + filepath.Base(localPath)
	}
	return key
}

// Upload puts the file at localPath to bucket/key in a single request.
func (c *Client) Upload(ctx context.Context, localPath, bucket, key string, opts ...UploadOption) (*Transfer, error) {
	start := time.Now()
	key = ObjectKey(key, localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return nil, &StoreError{Op: "open_file", Bucket: bucket, Key: key, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &StoreError{Op: "stat_file", Bucket: bucket, Key: key, Err: err}
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	}
	for _, opt := range opts {
		opt(input)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	out, err := c.s3.PutObject(ctx, input)
	if err != nil {
		return nil, &StoreError{Op: "put_object", Bucket: bucket, Key: key, Err: err}
	}

	return &Transfer{
		Bucket:   bucket,
		Key:      key,
		Bytes:    info.Size(),
		ETag:     strings.Trim(aws.ToString(out.ETag), "\""),
		Duration: time.Since(start),
	}, nil
}

// Download writes bucket/key to dest, creating parent directories.
func (c *Client) Download(ctx context.Context, bucket, key, dest string) (*Transfer, error) {
	start := time.Now()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &StoreError{Op: "get_object", Bucket: bucket, Key: key, Err: err}
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, &StoreError{Op: "create_directory", Bucket: bucket, Key: key, Err: err}
	}
	f, err := os.Create(dest)
	if err != nil {
		return nil, &StoreError{Op: "create_file", Bucket: bucket, Key: key, Err: err}
	}

	n, err := io.Copy(f, out.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return nil, &StoreError{Op: "read_object", Bucket: bucket, Key: key, Err: err}
	}

	return &Transfer{
		Bucket:   bucket,
		Key:      key,
		Bytes:    n,
		ETag:     strings.Trim(aws.ToString(out.ETag), "\""),
		Duration: time.Since(start),
	}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout > 0 {
		return context.WithTimeout(ctx, c.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// IsURI reports whether s is an s3:// URI.
func IsURI(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// ParseURI splits s3://bucket/key into its bucket and key.
func ParseURI(uri string) (bucket, key string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("s3 uri %q must name a bucket and an object key", uri)
	}
	return bucket, path.Clean(key), nil
}
