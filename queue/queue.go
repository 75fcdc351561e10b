// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package queue receives ingest jobs from, and publishes notifications to,
// SQS.
package queue

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
)

// MaxReceive is the most messages SQS returns from one receive call.
const MaxReceive = 10

// Job asks for one report to be ingested.
type Job struct {
	// Bucket and Key locate the raw report.
	Bucket string `json:"bucket"`
	Key    string `json:"key"`

	// Table overrides the configured key-value table when set.
	Table string `json:"table,omitempty"`

	// Schema overrides the configured schema when set.
	Schema string `json:"schema,omitempty"`

	MessageID     string `json:"-"`
	ReceiptHandle string `json:"-"`
}

// URL returns the s3:// URL of the job's report.
func (j Job) URL() string {
	return "s3://" + j.Bucket + "/" + j.Key
}

// Queue is one SQS queue.
type Queue struct {
	URL    string
	client sqsiface.SQSAPI

	// WaitTime is the long-poll duration in seconds, at most 20.
	WaitTime int64

	// VisibilityTimeout, in seconds, hides received messages from other
	// consumers. Zero uses the queue's default.
	VisibilityTimeout int64

	Log logger.Logger
}

func New(client sqsiface.SQSAPI, url string) *Queue {
	return &Queue{
		URL:      url,
		client:   client,
		WaitTime: 20,
		Log:      logger.NopLogger,
	}
}

// Lookup resolves a queue name to its URL.
func Lookup(ctx context.Context, client sqsiface.SQSAPI, name string) (*Queue, error) {
	out, err := client.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.WithCode(errors.Wrapf(err, "queue %s", name), errors.ErrNotFound)
		}
		return nil, errors.WithCode(errors.Wrapf(err, "looking up queue %s", name), errors.ErrRemoteCall)
	}
	return New(client, aws.StringValue(out.QueueUrl)), nil
}

// Receive long-polls for up to max jobs. Messages whose body is not a job
// are logged, deleted, and left out of the result.
func (q *Queue) Receive(ctx context.Context, max int64) ([]Job, error) {
	if max <= 0 || max > MaxReceive {
		max = MaxReceive
	}
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.URL),
		MaxNumberOfMessages: aws.Int64(max),
		WaitTimeSeconds:     aws.Int64(q.WaitTime),
	}
	if q.VisibilityTimeout > 0 {
		in.VisibilityTimeout = aws.Int64(q.VisibilityTimeout)
	}
	out, err := q.client.ReceiveMessageWithContext(ctx, in)
	if err != nil {
		return nil, errors.WithCode(errors.Wrapf(err, "receiving from %s", q.URL), errors.ErrRemoteCall)
	}

	jobs := make([]Job, 0, len(out.Messages))
	for _, msg := range out.Messages {
		var job Job
		err := json.Unmarshal([]byte(aws.StringValue(msg.Body)), &job)
		if err == nil && (job.Bucket == "" || job.Key == "") {
			err = errors.New(errors.ErrInvalidConfig, "job needs bucket and key")
		}
		if err != nil {
			q.Log.Warnf("dropping message %s: %v", aws.StringValue(msg.MessageId), err)
			if derr := q.delete(ctx, aws.StringValue(msg.ReceiptHandle)); derr != nil {
				q.Log.Errorf("deleting bad message %s: %v", aws.StringValue(msg.MessageId), derr)
			}
			continue
		}
		job.MessageID = aws.StringValue(msg.MessageId)
		job.ReceiptHandle = aws.StringValue(msg.ReceiptHandle)
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Ack deletes a finished job's message.
func (q *Queue) Ack(ctx context.Context, job Job) error {
	if job.ReceiptHandle == "" {
		return errors.New(errors.ErrInvalidConfig, "job has no receipt handle")
	}
	return q.delete(ctx, job.ReceiptHandle)
}

func (q *Queue) delete(ctx context.Context, receipt string) error {
	_, err := q.client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.URL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return errors.WithCode(errors.Wrapf(err, "deleting message from %s", q.URL), errors.ErrRemoteCall)
	}
	return nil
}

// Notify sends v as a JSON message to the queue at url and returns the
// message id.
func Notify(ctx context.Context, client sqsiface.SQSAPI, url string, v interface{}) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", errors.WithCode(errors.Wrap(err, "encoding notification"), errors.ErrEncoding)
	}
	out, err := client.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", errors.WithCode(errors.Wrapf(err, "sending to %s", url), errors.ErrRemoteCall)
	}
	return aws.StringValue(out.MessageId), nil
}

func isNotFound(err error) bool {
	var aerr interface{ Code() string }
	if errors.As(err, &aerr) {
		return aerr.Code() == sqs.ErrCodeQueueDoesNotExist
	}
	return false
}
