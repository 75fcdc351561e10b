// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAddPartitionQuery(t *testing.T) {
	q := AddPartitionQuery("adwords.report",
		map[string]string{"year": "2019", "account": "o'brien", "month": "03"},
		"s3://out/parquet/2019/03/")
	assert.Equal(t,
		"ALTER TABLE adwords.report ADD IF NOT EXISTS PARTITION (account = 'o''brien', month = '03', year = '2019') LOCATION 's3://out/parquet/2019/03/'",
		q)
}

func execution(state, reason string) *athena.GetQueryExecutionOutput {
	return &athena.GetQueryExecutionOutput{QueryExecution: &athena.QueryExecution{
		Status: &athena.QueryExecutionStatus{State: aws.String(state), StateChangeReason: aws.String(reason)},
	}}
}

func TestSubmitAndWait(t *testing.T) {
	athenaMock := &mocks.AthenaAPI{}
	athenaMock.On("StartQueryExecutionWithContext", mock.Anything, mock.MatchedBy(func(in *athena.StartQueryExecutionInput) bool {
		return *in.QueryExecutionContext.Database == "adwords" &&
			*in.WorkGroup == "etl" &&
			*in.ResultConfiguration.OutputLocation == "s3://athena-out/"
	})).Return(&athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("q1")}, nil)
	athenaMock.On("GetQueryExecutionWithContext", mock.Anything, mock.Anything).
		Return(execution(athena.QueryExecutionStateRunning, ""), nil).Once()
	athenaMock.On("GetQueryExecutionWithContext", mock.Anything, mock.Anything).
		Return(execution(athena.QueryExecutionStateSucceeded, ""), nil).Once()

	c := New(athenaMock, "adwords")
	c.Workgroup = "etl"
	c.OutputLocation = "s3://athena-out/"
	c.PollInterval = time.Millisecond

	id, err := c.Submit(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "q1", id)
	require.NoError(t, c.Wait(context.Background(), id))
	athenaMock.AssertExpectations(t)
}

func TestWaitFailed(t *testing.T) {
	athenaMock := &mocks.AthenaAPI{}
	athenaMock.On("GetQueryExecutionWithContext", mock.Anything, mock.Anything).
		Return(execution(athena.QueryExecutionStateFailed, "table not found"), nil)

	c := New(athenaMock, "adwords")
	err := c.Wait(context.Background(), "q2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRemoteCall))
	assert.Contains(t, err.Error(), "table not found")
}

func TestWaitCancelled(t *testing.T) {
	athenaMock := &mocks.AthenaAPI{}
	athenaMock.On("GetQueryExecutionWithContext", mock.Anything, mock.Anything).
		Return(execution(athena.QueryExecutionStateQueued, ""), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(athenaMock, "adwords")
	assert.ErrorIs(t, c.Wait(ctx, "q3"), context.Canceled)
}
