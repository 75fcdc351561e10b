// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package ctl implements the reportload commands. Each command is a struct
// whose exported fields are bound to flags by the cmd package.
package ctl

import (
	"io"
	"time"

	"github.com/featurebasedb/reportload/config"
	"github.com/featurebasedb/reportload/logger"
	"github.com/spf13/pflag"
)

// CmdIO holds standard unix inputs and outputs.
type CmdIO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	logger logger.Logger
}

// NewCmdIO returns a new instance of CmdIO with inputs and outputs set to the
// arguments.
func NewCmdIO(stdin io.Reader, stdout, stderr io.Writer) *CmdIO {
	return &CmdIO{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		logger: logger.NewStandardLogger(stderr),
	}
}

func (c *CmdIO) Logger() logger.Logger {
	return c.logger
}

// SetLogger replaces the logger, usually with one built from the config.
func (c *CmdIO) SetLogger(l logger.Logger) {
	c.logger = l
}

// BuildConfigFlags attaches a flag for every configuration field to flags.
// Flag names are the config file keys joined with dots.
func BuildConfigFlags(flags *pflag.FlagSet, c *config.Config) {
	flags.StringVar(&c.LogPath, "log-path", c.LogPath, "Log path. Empty logs to stderr.")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn or error.")
	flags.Var(&c.Timeout, "timeout", "Bound on one ingest invocation.")

	// AWS
	flags.StringVar(&c.AWS.Region, "aws.region", c.AWS.Region, "AWS region.")
	flags.StringVar(&c.AWS.Profile, "aws.profile", c.AWS.Profile, "Shared credentials profile.")
	flags.StringVar(&c.AWS.Endpoint, "aws.endpoint", c.AWS.Endpoint, "Endpoint override for every AWS service, for local stacks.")
	flags.IntVar(&c.AWS.MaxRetries, "aws.max-retries", c.AWS.MaxRetries, "Retries the AWS SDK makes for throttled or failed requests.")

	// S3
	flags.StringVar(&c.S3.Bucket, "s3.bucket", c.S3.Bucket, "Bucket holding raw reports and Parquet artifacts.")
	flags.StringVar(&c.S3.ParquetPrefix, "s3.parquet-prefix", c.S3.ParquetPrefix, "Key prefix Parquet artifacts are uploaded under. Empty skips the upload.")

	// DynamoDB
	flags.StringVar(&c.Dynamo.Table, "dynamo.table", c.Dynamo.Table, "Table receiving one item per report row. Empty skips the key-value write.")
	flags.StringVar(&c.Dynamo.KeyField, "dynamo.key-field", c.Dynamo.KeyField, "Column every item is keyed by.")
	flags.StringVar(&c.Dynamo.AccountsTable, "dynamo.accounts-table", c.Dynamo.AccountsTable, "Table holding account documents.")
	flags.BoolVar(&c.Dynamo.EnrichWebsite, "dynamo.enrich-website", c.Dynamo.EnrichWebsite, "Add each account's website from dynamo.accounts-table to every item.")

	// Batch
	flags.IntVar(&c.Batch.Capacity, "batch.capacity", c.Batch.Capacity, "Records per key-value write, at most 25.")
	flags.IntVar(&c.Batch.MaxAttempts, "batch.max-attempts", c.Batch.MaxAttempts, "Write requests made for one batch before its unprocessed items are rejected.")
	flags.DurationVar((*time.Duration)(&c.Batch.InitialInterval), "batch.initial-interval", time.Duration(c.Batch.InitialInterval), "First retry delay.")
	flags.DurationVar((*time.Duration)(&c.Batch.MaxInterval), "batch.max-interval", time.Duration(c.Batch.MaxInterval), "Longest retry delay.")
	flags.IntVar(&c.Batch.Concurrency, "batch.concurrency", c.Batch.Concurrency, "Batches written at once. 1 writes in fill order.")
	flags.Float64Var(&c.Batch.WritesPerSecond, "batch.writes-per-second", c.Batch.WritesPerSecond, "Write request rate limit. 0 is unlimited.")
	flags.DurationVar((*time.Duration)(&c.Batch.RequestTimeout), "batch.request-timeout", time.Duration(c.Batch.RequestTimeout), "Timeout for one write request.")

	// Parquet
	flags.StringVar(&c.Parquet.Schema, "parquet.schema", c.Parquet.Schema, "Message-type schema declaration. Empty reads name__Type declarations from the header.")
	flags.StringVar(&c.Parquet.Delimiter, "parquet.delimiter", c.Parquet.Delimiter, `Field delimiter; "\t" for tab.`)
	flags.StringVar(&c.Parquet.Dir, "parquet.dir", c.Parquet.Dir, "Directory Parquet artifacts are written to and kept in. Empty uses a temporary directory removed after each run.")
	flags.StringVar(&c.Parquet.ReportConfig, "parquet.report-config", c.Parquet.ReportConfig, "Report configuration document, local path or s3:// URL.")

	// Queue
	flags.StringVar(&c.Queue.Name, "queue.name", c.Queue.Name, "SQS queue name, resolved to a URL.")
	flags.StringVar(&c.Queue.URL, "queue.url", c.Queue.URL, "SQS queue URL. Takes precedence over queue.name.")
	flags.Int64Var(&c.Queue.WaitTime, "queue.wait-time", c.Queue.WaitTime, "Long-poll seconds, at most 20.")
	flags.Int64Var(&c.Queue.VisibilityTimeout, "queue.visibility-timeout", c.Queue.VisibilityTimeout, "Seconds a received job is hidden from other consumers. 0 uses the queue default.")
	flags.Int64Var(&c.Queue.MaxMessages, "queue.max-messages", c.Queue.MaxMessages, "Jobs received at once, at most 10.")
	flags.StringVar(&c.Queue.NotifyURL, "queue.notify-url", c.Queue.NotifyURL, "SQS queue URL told about every finished job.")
	flags.StringVar(&c.Queue.StatusURL, "queue.status-url", c.Queue.StatusURL, "Directory or s3:// prefix receiving a JSON status document per finished job.")

	// Athena
	flags.StringVar(&c.Athena.Database, "athena.database", c.Athena.Database, "Athena database.")
	flags.StringVar(&c.Athena.Table, "athena.table", c.Athena.Table, "Athena table uploaded artifacts are added to as partitions. Empty skips it.")
	flags.StringVar(&c.Athena.Workgroup, "athena.workgroup", c.Athena.Workgroup, "Athena workgroup.")
	flags.StringVar(&c.Athena.OutputLocation, "athena.output-location", c.Athena.OutputLocation, "s3:// URL for query results.")
	flags.DurationVar((*time.Duration)(&c.Athena.PollInterval), "athena.poll-interval", time.Duration(c.Athena.PollInterval), "How often a running query is checked.")
}
