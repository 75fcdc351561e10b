// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/featurebasedb/reportload/errors"
)

// ParseURL splits an s3://bucket/key URL. ok is false for anything which
// is not an s3 URL, which callers treat as a local path.
func ParseURL(name string) (bucket, key string, ok bool, err error) {
	if !strings.HasPrefix(name, "s3://") {
		return "", "", false, nil
	}
	u, err := url.Parse(name)
	if err != nil {
		return "", "", true, errors.WithCode(errors.Wrapf(err, "parsing S3 URL %v", name), errors.ErrInvalidConfig)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", true, errors.Newf(errors.ErrInvalidConfig, "S3 URL %v needs a bucket and a key", name)
	}
	return u.Host, key, true, nil
}

// ReadFileOrURL reads a path from the filesystem or an s3 URL. The s3client
// is required if reading an s3 URL. A missing file, bucket or key is
// reported with code ErrNotFound.
func ReadFileOrURL(ctx context.Context, name string, s3client s3iface.S3API) ([]byte, error) {
	bucket, key, isURL, err := ParseURL(name)
	if err != nil {
		return nil, err
	}
	if !isURL {
		content, err := os.ReadFile(name)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WithCode(errors.Wrapf(err, "reading file %v", name), errors.ErrNotFound)
			}
			return nil, errors.Wrapf(err, "reading file %v", name)
		}
		return content, nil
	}

	if s3client == nil {
		return nil, errors.New(errors.ErrInvalidConfig, "missing s3 client")
	}
	result, err := s3client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, objectError(err, "fetching S3 object "+name)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return nil, errors.WithCode(errors.Wrapf(err, "reading S3 object %v", name), errors.ErrRemoteCall)
	}
	return buf.Bytes(), nil
}

// WriteFileOrURL writes contents to a local path or an s3 URL.
func WriteFileOrURL(ctx context.Context, name string, contents []byte, s3client s3iface.S3API) error {
	bucket, key, isURL, err := ParseURL(name)
	if err != nil {
		return err
	}
	if !isURL {
		if err := os.WriteFile(name, contents, 0o644); err != nil {
			return errors.Wrapf(err, "writing file %v", name)
		}
		return nil
	}

	if s3client == nil {
		return errors.New(errors.ErrInvalidConfig, "missing s3 client")
	}
	_, err = s3client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(contents),
		ContentLength: aws.Int64(int64(len(contents))),
	})
	if err != nil {
		return errors.WithCode(errors.Wrapf(err, "putting S3 object %v", name), errors.ErrRemoteCall)
	}
	return nil
}

// OpenFileOrURL is ReadFileOrURL as a stream, gunzipping ".gz" names.
func OpenFileOrURL(ctx context.Context, name string, s3client s3iface.S3API) (io.ReadCloser, error) {
	bucket, key, isURL, err := ParseURL(name)
	if err != nil {
		return nil, err
	}
	if isURL {
		if s3client == nil {
			return nil, errors.New(errors.ErrInvalidConfig, "missing s3 client")
		}
		return NewBucket(s3client, bucket).Open(ctx, key)
	}
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithCode(errors.Wrapf(err, "opening %v", name), errors.ErrNotFound)
		}
		return nil, errors.Wrapf(err, "opening %v", name)
	}
	if strings.HasSuffix(name, ".gz") {
		return gunzip(f, name)
	}
	return f, nil
}

func objectError(err error, msg string) error {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchBucket, s3.ErrCodeNoSuchKey, "NotFound":
			return errors.WithCode(errors.Wrap(err, msg), errors.ErrNotFound)
		}
	}
	return errors.WithCode(errors.Wrap(err, msg), errors.ErrRemoteCall)
}
