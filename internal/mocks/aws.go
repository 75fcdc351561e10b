// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package mocks holds testify mocks of the AWS service APIs. Each mock
// embeds the SDK interface so it satisfies it; only the methods the
// collaborators call are implemented, anything else panics.
package mocks

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/aws/aws-sdk-go/service/athena/athenaiface"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/stretchr/testify/mock"
)

// S3API is a mock of s3iface.S3API.
type S3API struct {
	s3iface.S3API
	mock.Mock
}

func (_m *S3API) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	ret := _m.Called(ctx, in)
	out, _ := ret.Get(0).(*s3.GetObjectOutput)
	return out, ret.Error(1)
}

func (_m *S3API) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	ret := _m.Called(ctx, in)
	out, _ := ret.Get(0).(*s3.PutObjectOutput)
	return out, ret.Error(1)
}

func (_m *S3API) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	ret := _m.Called(ctx, in)
	out, _ := ret.Get(0).(*s3.DeleteObjectOutput)
	return out, ret.Error(1)
}

// ListObjectsV2PagesWithContext hands each page returned by the mock to fn.
// The expectation's first return value is a []*s3.ListObjectsV2Output.
func (_m *S3API) ListObjectsV2PagesWithContext(ctx aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	ret := _m.Called(ctx, in)
	pages, _ := ret.Get(0).([]*s3.ListObjectsV2Output)
	for i, page := range pages {
		if !fn(page, i == len(pages)-1) {
			break
		}
	}
	return ret.Error(1)
}

// DynamoDBAPI is a mock of dynamodbiface.DynamoDBAPI.
type DynamoDBAPI struct {
	dynamodbiface.DynamoDBAPI
	mock.Mock
}

func (_m *DynamoDBAPI) BatchWriteItemWithContext(ctx aws.Context, in *dynamodb.BatchWriteItemInput, _ ...request.Option) (*dynamodb.BatchWriteItemOutput, error) {
	ret := _m.Called(ctx, in)
	out, _ := ret.Get(0).(*dynamodb.BatchWriteItemOutput)
	return out, ret.Error(1)
}

func (_m *DynamoDBAPI) GetItemWithContext(ctx aws.Context, in *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	ret := _m.Called(ctx, in)
	out, _ := ret.Get(0).(*dynamodb.GetItemOutput)
	return out, ret.Error(1)
}

// ScanPagesWithContext hands each page returned by the mock to fn. The
// expectation's first return value is a []*dynamodb.ScanOutput.
func (_m *DynamoDBAPI) ScanPagesWithContext(ctx aws.Context, in *dynamodb.ScanInput, fn func(*dynamodb.ScanOutput, bool) bool, _ ...request.Option) error {
	ret := _m.Called(ctx, in)
	pages, _ := ret.Get(0).([]*dynamodb.ScanOutput)
	for i, page := range pages {
		if !fn(page, i == len(pages)-1) {
			break
		}
	}
	return ret.Error(1)
}

// SQSAPI is a mock of sqsiface.SQSAPI.
type SQSAPI struct {
	sqsiface.SQSAPI
	mock.Mock
}

func (_m *SQSAPI) ReceiveMessageWithContext(ctx aws.Context, in *sqs.ReceiveMessageInput, _ ...request.Option) (*sqs.ReceiveMessageOutput, error) {
	ret := _m.Called(ctx, in)
	out, _ := ret.Get(0).(*sqs.ReceiveMessageOutput)
	return out, ret.Error(1)
}

func (_m *SQSAPI) DeleteMessageWithContext(ctx aws.Context, in *sqs.DeleteMessageInput, _ ...request.Option) (*sqs.DeleteMessageOutput, error) {
	ret := _m.Called(ctx, in)
	out, _ := ret.Get(0).(*sqs.DeleteMessageOutput)
	return out, ret.Error(1)
}

func (_m *SQSAPI) SendMessageWithContext(ctx aws.Context, in *sqs.SendMessageInput, _ ...request.Option) (*sqs.SendMessageOutput, error) {
	ret := _m.Called(ctx, in)
	out, _ := ret.Get(0).(*sqs.SendMessageOutput)
	return out, ret.Error(1)
}

func (_m *SQSAPI) GetQueueUrlWithContext(ctx aws.Context, in *sqs.GetQueueUrlInput, _ ...request.Option) (*sqs.GetQueueUrlOutput, error) {
	ret := _m.Called(ctx, in)
	out, _ := ret.Get(0).(*sqs.GetQueueUrlOutput)
	return out, ret.Error(1)
}

// AthenaAPI is a mock of athenaiface.AthenaAPI.
type AthenaAPI struct {
	athenaiface.AthenaAPI
	mock.Mock
}

func (_m *AthenaAPI) StartQueryExecutionWithContext(ctx aws.Context, in *athena.StartQueryExecutionInput, _ ...request.Option) (*athena.StartQueryExecutionOutput, error) {
	ret := _m.Called(ctx, in)
	out, _ := ret.Get(0).(*athena.StartQueryExecutionOutput)
	return out, ret.Error(1)
}

func (_m *AthenaAPI) GetQueryExecutionWithContext(ctx aws.Context, in *athena.GetQueryExecutionInput, _ ...request.Option) (*athena.GetQueryExecutionOutput, error) {
	ret := _m.Called(ctx, in)
	out, _ := ret.Get(0).(*athena.GetQueryExecutionOutput)
	return out, ret.Error(1)
}
