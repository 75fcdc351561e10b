// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package storage_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/internal/mocks"
	"github.com/featurebasedb/reportload/storage"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func getInput(bucket, key string) interface{} {
	return mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Bucket == bucket && *in.Key == key
	})
}

func TestParseURL(t *testing.T) {
	bucket, key, ok, err := storage.ParseURL("s3://reports/raw/2019/report.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "reports", bucket)
	assert.Equal(t, "raw/2019/report.csv", key)

	_, _, ok, err = storage.ParseURL("/tmp/report.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, ok, err = storage.ParseURL("s3://reports")
	assert.True(t, ok)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestReadFileOrURL(t *testing.T) {
	ctx := context.Background()
	s3mock := &mocks.S3API{}
	s3mock.On("GetObjectWithContext", mock.Anything, getInput("cfg", "report.json")).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(`{"a":1}`)))}, nil)
	s3mock.On("GetObjectWithContext", mock.Anything, getInput("cfg", "missing.json")).
		Return(nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil))
	s3mock.On("GetObjectWithContext", mock.Anything, getInput("cfg", "denied.json")).
		Return(nil, awserr.New("AccessDenied", "denied", nil))

	b, err := storage.ReadFileOrURL(ctx, "s3://cfg/report.json", s3mock)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(b))

	_, err = storage.ReadFileOrURL(ctx, "s3://cfg/missing.json", s3mock)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = storage.ReadFileOrURL(ctx, "s3://cfg/denied.json", s3mock)
	assert.True(t, errors.Is(err, errors.ErrRemoteCall))

	_, err = storage.ReadFileOrURL(ctx, "s3://cfg/report.json", nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	path := filepath.Join(t.TempDir(), "local.json")
	require.NoError(t, storage.WriteFileOrURL(ctx, path, []byte("local"), nil))
	b, err = storage.ReadFileOrURL(ctx, path, nil)
	require.NoError(t, err)
	assert.Equal(t, "local", string(b))

	_, err = storage.ReadFileOrURL(ctx, path+".nope", nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	s3mock.AssertExpectations(t)
}

func TestWriteFileOrURL(t *testing.T) {
	s3mock := &mocks.S3API{}
	s3mock.On("PutObjectWithContext", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "out" && *in.Key == "a/b.json" && *in.ContentLength == 5
	})).Return(&s3.PutObjectOutput{}, nil)

	require.NoError(t, storage.WriteFileOrURL(context.Background(), "s3://out/a/b.json", []byte("hello"), s3mock))
	s3mock.AssertExpectations(t)
}

func TestBucketOpenGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("Day,Clicks\n2019-01-01,5\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	s3mock := &mocks.S3API{}
	s3mock.On("GetObjectWithContext", mock.Anything, getInput("raw", "r.csv.gz")).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(&buf), ContentLength: aws.Int64(int64(buf.Len()))}, nil)
	s3mock.On("GetObjectWithContext", mock.Anything, getInput("raw", "r.csv")).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("plain")))}, nil)

	bucket := storage.NewBucket(s3mock, "raw")
	rc, err := bucket.Open(context.Background(), "r.csv.gz")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "Day,Clicks\n2019-01-01,5\n", string(b))

	rc, err = bucket.Open(context.Background(), "r.csv")
	require.NoError(t, err)
	b, err = io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(b))
}

func TestBucketList(t *testing.T) {
	s3mock := &mocks.S3API{}
	s3mock.On("ListObjectsV2PagesWithContext", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return *in.Bucket == "raw" && *in.Prefix == "2019/"
	})).Return([]*s3.ListObjectsV2Output{
		{Contents: []*s3.Object{{Key: aws.String("2019/a.csv")}, {Key: aws.String("2019/b.csv")}}},
		{Contents: []*s3.Object{{Key: aws.String("2019/c.csv.gz")}}},
	}, nil)

	keys, err := storage.NewBucket(s3mock, "raw").List(context.Background(), "2019/")
	require.NoError(t, err)
	assert.Equal(t, []string{"2019/a.csv", "2019/b.csv", "2019/c.csv.gz"}, keys)
}

func TestBucketUploadDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.parquet")
	require.NoError(t, os.WriteFile(path, []byte("PAR1...PAR1"), 0o600))

	s3mock := &mocks.S3API{}
	s3mock.On("PutObjectWithContext", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Key == "parquet/report.parquet" && *in.ContentLength == 11
	})).Return(&s3.PutObjectOutput{}, nil)
	s3mock.On("DeleteObjectWithContext", mock.Anything, mock.Anything).
		Return(&s3.DeleteObjectOutput{}, nil)

	bucket := storage.NewBucket(s3mock, "out")
	assert.Equal(t, "s3://out/parquet/report.parquet", bucket.URL("parquet/report.parquet"))
	require.NoError(t, bucket.Upload(context.Background(), "parquet/report.parquet", path))
	require.NoError(t, bucket.Delete(context.Background(), "parquet/report.parquet"))
	s3mock.AssertExpectations(t)

	err := bucket.Upload(context.Background(), "x", path+".missing")
	assert.Error(t, err)
}

func TestOpenFileOrURLLocalGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte("a,b\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	rc, err := storage.OpenFileOrURL(context.Background(), path, nil)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(b))
}
