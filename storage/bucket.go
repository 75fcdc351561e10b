// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package storage reads raw reports from and writes Parquet artifacts to S3
// or the local filesystem.
package storage

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/klauspost/compress/gzip"

	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
)

// Bucket is one S3 bucket.
type Bucket struct {
	Name   string
	client s3iface.S3API
	Log    logger.Logger
}

func NewBucket(client s3iface.S3API, name string) *Bucket {
	return &Bucket{
		Name:   name,
		client: client,
		Log:    logger.NopLogger,
	}
}

// URL returns the s3:// URL of key in b.
func (b *Bucket) URL(key string) string {
	return "s3://" + b.Name + "/" + strings.TrimPrefix(key, "/")
}

// List returns every key under prefix, in the order S3 lists them.
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.Name),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, objectError(err, "listing "+b.URL(prefix))
	}
	return keys, nil
}

// Open streams the object at key. Keys ending in ".gz" are decompressed.
func (b *Bucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.Name),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, objectError(err, "fetching "+b.URL(key))
	}
	b.Log.Debugf("opened %s (%d bytes)", b.URL(key), aws.Int64Value(out.ContentLength))
	if strings.HasSuffix(key, ".gz") {
		return gunzip(out.Body, b.URL(key))
	}
	return out.Body, nil
}

// Upload puts the local file at path under key.
func (b *Bucket) Upload(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s for upload", path)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	_, err = b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.Name),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
	})
	if err != nil {
		return errors.WithCode(errors.Wrapf(err, "uploading %s to %s", path, b.URL(key)), errors.ErrRemoteCall)
	}
	b.Log.Infof("uploaded %s to %s", path, b.URL(key))
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.Name),
		Key:    aws.String(key),
	})
	if err != nil {
		return objectError(err, "deleting "+b.URL(key))
	}
	return nil
}

type gzipReadCloser struct {
	*gzip.Reader
	body io.Closer
}

func (g gzipReadCloser) Close() error {
	gerr := g.Reader.Close()
	if err := g.body.Close(); err != nil {
		return err
	}
	return gerr
}

func gunzip(body io.ReadCloser, name string) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(body)
	if err != nil {
		body.Close()
		return nil, errors.Wrapf(err, "opening gzip stream %s", name)
	}
	return gzipReadCloser{Reader: zr, body: body}, nil
}
