// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package awsclient builds the AWS session and service clients shared by
// the storage, key-value, queue and analytics collaborators.
package awsclient

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/aws/aws-sdk-go/service/athena/athenaiface"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
)

const DefaultMaxRetries = 10

// Config selects credentials and endpoints. Empty fields fall back to the
// SDK's own resolution (environment, shared config, instance role).
type Config struct {
	Region  string `toml:"region"`
	Profile string `toml:"profile"`

	// Endpoint overrides every service endpoint, for local stacks.
	Endpoint string `toml:"endpoint"`

	MaxRetries int `toml:"max-retries"`
}

// Clients are the service APIs, typed as interfaces so tests can swap in
// mocks.
type Clients struct {
	Session  *session.Session
	S3       s3iface.S3API
	DynamoDB dynamodbiface.DynamoDBAPI
	SQS      sqsiface.SQSAPI
	Athena   athenaiface.AthenaAPI
}

// NewSession creates the AWS session described by cfg.
func NewSession(cfg Config, log logger.Logger) (*session.Session, error) {
	if log == nil {
		log = logger.NopLogger
	}
	log.Infof("Initializing AWS session")
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = DefaultMaxRetries
	}
	config := &aws.Config{
		Retryer: client.DefaultRetryer{NumMaxRetries: retries},
	}
	if cfg.Profile != "" {
		log.Debugf("using AWS profile %s", cfg.Profile)
		config.Credentials = credentials.NewSharedCredentials("", cfg.Profile)
	}
	if cfg.Region != "" {
		config.Region = aws.String(cfg.Region)
	}
	if cfg.Endpoint != "" {
		config.Endpoint = aws.String(cfg.Endpoint)
		// local stacks serve buckets by path
		config.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(config)
	if err != nil {
		return nil, errors.WithCode(errors.Wrap(err, "creating AWS session"), errors.ErrRemoteCall)
	}
	return sess, nil
}

// New creates a session and every service client on it.
func New(cfg Config, log logger.Logger) (*Clients, error) {
	sess, err := NewSession(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Clients{
		Session:  sess,
		S3:       s3.New(sess),
		DynamoDB: dynamodb.New(sess),
		SQS:      sqs.New(sess),
		Athena:   athena.New(sess),
	}, nil
}
