// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package dynamo_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/featurebasedb/reportload/batch"
	"github.com/featurebasedb/reportload/dynamo"
	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/internal/mocks"
	"github.com/featurebasedb/reportload/logger"
	"github.com/featurebasedb/reportload/record"
	"github.com/featurebasedb/reportload/toml"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func put(attrs map[string]string) *dynamodb.WriteRequest {
	item := map[string]*dynamodb.AttributeValue{}
	for k, v := range attrs {
		item[k] = &dynamodb.AttributeValue{S: aws.String(v)}
	}
	return &dynamodb.WriteRequest{PutRequest: &dynamodb.PutRequest{Item: item}}
}

func TestBatchWrite(t *testing.T) {
	dynamoMock := &mocks.DynamoDBAPI{}
	items := []record.Item{
		{"account_id": "1", "clicks": "500"},
		{"account_id": "2", "clicks": "0"},
	}
	dynamoMock.On("BatchWriteItemWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.BatchWriteItemInput) bool {
		reqs := in.RequestItems["report"]
		return len(in.RequestItems) == 1 && len(reqs) == 2 &&
			*reqs[0].PutRequest.Item["clicks"].S == "500" &&
			*reqs[1].PutRequest.Item["account_id"].S == "2"
	})).Return(&dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]*dynamodb.WriteRequest{
			"report": {put(map[string]string{"account_id": "2", "clicks": "0"})},
		},
	}, nil)

	store := dynamo.NewStore(dynamoMock)
	unprocessed, err := store.BatchWrite(context.Background(), "report", items)
	require.NoError(t, err)
	if diff := cmp.Diff([]record.Item{items[1]}, unprocessed); diff != "" {
		t.Fatalf("unprocessed mismatch (-want +got):\n%s", diff)
	}
	dynamoMock.AssertExpectations(t)
}

func TestBatchWriteLimits(t *testing.T) {
	store := dynamo.NewStore(&mocks.DynamoDBAPI{})
	unprocessed, err := store.BatchWrite(context.Background(), "report", nil)
	require.NoError(t, err)
	assert.Nil(t, unprocessed)

	items := make([]record.Item, batch.MaxCapacity+1)
	_, err = store.BatchWrite(context.Background(), "report", items)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestBatchWriteMissingTable(t *testing.T) {
	dynamoMock := &mocks.DynamoDBAPI{}
	dynamoMock.On("BatchWriteItemWithContext", mock.Anything, mock.Anything).
		Return(nil, awserr.New(dynamodb.ErrCodeResourceNotFoundException, "no table", nil))
	_, err := dynamo.NewStore(dynamoMock).BatchWrite(context.Background(), "nope", []record.Item{{"a": "b"}})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

// The persister retries what DynamoDB leaves unprocessed.
func TestStoreWithPersister(t *testing.T) {
	dynamoMock := &mocks.DynamoDBAPI{}
	dynamoMock.On("BatchWriteItemWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.BatchWriteItemInput) bool {
		return len(in.RequestItems["report"]) == 3
	})).Return(&dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]*dynamodb.WriteRequest{
			"report": {put(map[string]string{"id": "2"})},
		},
	}, nil).Once()
	dynamoMock.On("BatchWriteItemWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.BatchWriteItemInput) bool {
		reqs := in.RequestItems["report"]
		return len(reqs) == 1 && *reqs[0].PutRequest.Item["id"].S == "2"
	})).Return(&dynamodb.BatchWriteItemOutput{}, nil).Once()

	cfg := batch.NewConfig()
	cfg.Capacity = 3
	cfg.InitialInterval = toml.Duration(time.Millisecond)
	cfg.MaxInterval = toml.Duration(time.Millisecond)
	p, err := batch.NewPersister(dynamo.NewStore(dynamoMock), cfg, batch.OptLogger(logger.NewLogfLogger(t)))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(ctx, "report", record.NewFields().Add("id", i)))
	}
	report, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Written)
	dynamoMock.AssertExpectations(t)
}

func TestAccounts(t *testing.T) {
	dynamoMock := &mocks.DynamoDBAPI{}
	dynamoMock.On("ScanPagesWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return *in.TableName == "accounts"
	})).Return([]*dynamodb.ScanOutput{
		{Items: []map[string]*dynamodb.AttributeValue{
			{"account_id": {S: aws.String("30")}, "is_af": {S: aws.String("true")}},
			{"account_id": {S: aws.String("12")}, "is_af": {S: aws.String("false")}},
		}},
		{Items: []map[string]*dynamodb.AttributeValue{
			{"account_id": {N: aws.String("7")}, "is_af": {BOOL: aws.Bool(true)}},
			{"account_id": {S: aws.String("5")}},
		}},
	}, nil)

	accts, err := dynamo.NewStore(dynamoMock).Accounts(context.Background(), "accounts")
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 30}, accts.AF)
	assert.Equal(t, []int64{5, 12}, accts.NotAF)
}

func TestAccountsBadID(t *testing.T) {
	dynamoMock := &mocks.DynamoDBAPI{}
	dynamoMock.On("ScanPagesWithContext", mock.Anything, mock.Anything).Return([]*dynamodb.ScanOutput{
		{Items: []map[string]*dynamodb.AttributeValue{{"account_id": {S: aws.String("abc")}}}},
	}, nil)
	_, err := dynamo.NewStore(dynamoMock).Accounts(context.Background(), "accounts")
	assert.Error(t, err)
}

func TestWebsite(t *testing.T) {
	dynamoMock := &mocks.DynamoDBAPI{}
	dynamoMock.On("GetItemWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return *in.Key[dynamo.AccountKeyField].S == "30"
	})).Return(&dynamodb.GetItemOutput{Item: map[string]*dynamodb.AttributeValue{
		"account_id": {S: aws.String("30")},
		"website":    {S: aws.String("https://example.com")},
	}}, nil)
	dynamoMock.On("GetItemWithContext", mock.Anything, mock.Anything).
		Return(&dynamodb.GetItemOutput{}, nil)

	store := dynamo.NewStore(dynamoMock)
	site, err := store.Website(context.Background(), "accounts", "30")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", site)

	_, err = store.Website(context.Background(), "accounts", "31")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBatchWriteKeepsLastOfSameKey(t *testing.T) {
	dynamoMock := &mocks.DynamoDBAPI{}
	dynamoMock.On("BatchWriteItemWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.BatchWriteItemInput) bool {
		reqs := in.RequestItems["report"]
		return len(reqs) == 2 &&
			*reqs[0].PutRequest.Item["account_id"].S == "2" &&
			*reqs[1].PutRequest.Item["account_id"].S == "1" &&
			*reqs[1].PutRequest.Item["clicks"].S == "7"
	})).Return(&dynamodb.BatchWriteItemOutput{}, nil).Once()

	store := dynamo.NewStore(dynamoMock)
	store.KeyFields = []string{"account_id"}
	store.Log = logger.NewLogfLogger(t)
	unprocessed, err := store.BatchWrite(context.Background(), "report", []record.Item{
		{"account_id": "1", "clicks": "5"},
		{"account_id": "2", "clicks": "6"},
		{"account_id": "1", "clicks": "7"},
	})
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
	dynamoMock.AssertExpectations(t)
}

func TestWebsites(t *testing.T) {
	dynamoMock := &mocks.DynamoDBAPI{}
	dynamoMock.On("GetItemWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return *in.TableName == "accounts" && *in.Key[dynamo.AccountKeyField].S == "30"
	})).Return(&dynamodb.GetItemOutput{Item: map[string]*dynamodb.AttributeValue{
		"account_id": {S: aws.String("30")},
		"website":    {S: aws.String("https://example.com")},
	}}, nil).Once()
	dynamoMock.On("GetItemWithContext", mock.Anything, mock.Anything).
		Return(&dynamodb.GetItemOutput{}, nil).Once()

	w := dynamo.NewWebsites(dynamo.NewStore(dynamoMock), "accounts")
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		fields, err := w.Enrich(ctx, "30")
		require.NoError(t, err)
		assert.Equal(t, []record.Field{{Name: dynamo.WebsiteField, Value: "https://example.com"}}, fields)
	}
	fields, err := w.Enrich(ctx, "31")
	require.NoError(t, err)
	assert.Equal(t, "", fields[0].Value)
	dynamoMock.AssertExpectations(t)
}
