// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/featurebasedb/reportload/awsclient"
	"github.com/featurebasedb/reportload/columnar"
	"github.com/featurebasedb/reportload/ctl"
	"github.com/featurebasedb/reportload/internal/mocks"
	"github.com/featurebasedb/reportload/schema"
	"github.com/featurebasedb/reportload/value"
)

func writeParquet(t *testing.T) string {
	t.Helper()
	sch, err := schema.Parse(campaignSchema)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "campaigns.parquet")
	w, err := columnar.Create(sch, path)
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch([]columnar.Column{
		{value.Ptr("brand")},
		{value.Ptr("500")},
		{value.Ptr("< 10%")},
	}, 1))
	require.NoError(t, w.Close())
	return path
}

func TestParquetInfoLocal(t *testing.T) {
	path := writeParquet(t)
	var out bytes.Buffer
	cmd := ctl.NewParquetInfoCommand(nil, &out, io.Discard)
	cmd.Path = path
	require.NoError(t, cmd.Run(context.Background()))
	assert.Contains(t, out.String(), "Name:"+path)
	assert.Contains(t, out.String(), "1. Name: clicks")
	assert.Contains(t, out.String(), "Number of rows:1")
	assert.Contains(t, out.String(), "brand\t500\t0.05\t")
}

func TestParquetInfoS3(t *testing.T) {
	data, err := os.ReadFile(writeParquet(t))
	require.NoError(t, err)

	s3Mock := &mocks.S3API{}
	s3Mock.On("GetObjectWithContext", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Bucket == "artifacts" && *in.Key == "parquet/campaigns.parquet"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil)

	var out bytes.Buffer
	cmd := ctl.NewParquetInfoCommand(nil, &out, io.Discard)
	cmd.Clients = &awsclient.Clients{S3: s3Mock}
	cmd.Path = "s3://artifacts/parquet/campaigns.parquet"
	require.NoError(t, cmd.Run(context.Background()))
	assert.Contains(t, out.String(), "Number of rows:1")
	s3Mock.AssertExpectations(t)
}
