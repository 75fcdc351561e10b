// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package config holds the reportload configuration. Every field is bound
// to a command line flag by ctl.BuildConfigFlags; the toml tags are the
// config file keys.
package config

import (
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/featurebasedb/reportload/awsclient"
	"github.com/featurebasedb/reportload/batch"
	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
	"github.com/featurebasedb/reportload/queue"
	"github.com/featurebasedb/reportload/toml"
)

const (
	DefaultDelimiter    = ","
	DefaultLogLevel     = "info"
	DefaultTimeout      = 10 * time.Minute
	DefaultPollInterval = time.Second
)

// Config is the configuration shared by every reportload command.
type Config struct {
	LogPath  string `toml:"log-path"`
	LogLevel string `toml:"log-level"`

	// Timeout bounds one ingest invocation.
	Timeout toml.Duration `toml:"timeout"`

	AWS awsclient.Config `toml:"aws"`

	S3 struct {
		// Bucket holds raw reports addressed by key, and Parquet artifacts.
		Bucket string `toml:"bucket"`

		// ParquetPrefix, when set, is where artifacts are uploaded.
		ParquetPrefix string `toml:"parquet-prefix"`
	} `toml:"s3"`

	Dynamo struct {
		// Table receives one item per report row. Empty disables the
		// key-value write.
		Table    string `toml:"table"`
		KeyField string `toml:"key-field"`

		// AccountsTable holds the account documents.
		AccountsTable string `toml:"accounts-table"`

		// EnrichWebsite adds each account's website from AccountsTable to
		// every item, looked up by the item's key.
		EnrichWebsite bool `toml:"enrich-website"`
	} `toml:"dynamo"`

	Batch batch.Config `toml:"batch"`

	Parquet struct {
		// Schema is a message-type declaration. Empty reads the schema from
		// the report header.
		Schema    string `toml:"schema"`
		Delimiter string `toml:"delimiter"`

		// Dir is where artifacts are written and kept. Empty uses a
		// temporary directory which is removed once the run is over.
		Dir string `toml:"dir"`

		// ReportConfig is a report configuration document, local or s3://,
		// which overrides schema, delimiter, table and key field.
		ReportConfig string `toml:"report-config"`
	} `toml:"parquet"`

	Queue struct {
		Name string `toml:"name"`
		URL  string `toml:"url"`

		// WaitTime is the long-poll duration in seconds.
		WaitTime          int64 `toml:"wait-time"`
		VisibilityTimeout int64 `toml:"visibility-timeout"`
		MaxMessages       int64 `toml:"max-messages"`

		// NotifyURL receives a message for every finished job.
		NotifyURL string `toml:"notify-url"`

		// StatusURL, a local directory or s3:// prefix, receives a
		// <message id>.json status document for every finished job.
		StatusURL string `toml:"status-url"`
	} `toml:"queue"`

	Athena struct {
		Database       string        `toml:"database"`
		Table          string        `toml:"table"`
		Workgroup      string        `toml:"workgroup"`
		OutputLocation string        `toml:"output-location"`
		PollInterval   toml.Duration `toml:"poll-interval"`
	} `toml:"athena"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	c := &Config{
		LogLevel: DefaultLogLevel,
		Timeout:  toml.Duration(DefaultTimeout),
		Batch:    batch.NewConfig(),
	}
	c.AWS.MaxRetries = awsclient.DefaultMaxRetries
	c.Dynamo.KeyField = "account_id"
	c.Dynamo.AccountsTable = "accounts"
	c.Parquet.Delimiter = DefaultDelimiter
	c.Queue.WaitTime = 20
	c.Queue.MaxMessages = queue.MaxReceive
	c.Athena.PollInterval = toml.Duration(DefaultPollInterval)
	return c
}

// Validate checks the configuration as a whole.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return errors.WithCode(err, errors.ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return errors.Newf(errors.ErrInvalidConfig, "timeout %s is negative", c.Timeout)
	}
	if err := c.Batch.Validate(); err != nil {
		return err
	}
	if _, err := c.Comma(); err != nil {
		return err
	}
	if c.AWS.MaxRetries < 0 {
		return errors.Newf(errors.ErrInvalidConfig, "aws max retries %d is negative", c.AWS.MaxRetries)
	}
	if c.Queue.WaitTime < 0 || c.Queue.WaitTime > 20 {
		return errors.Newf(errors.ErrInvalidConfig, "queue wait time %d outside 0..20 seconds", c.Queue.WaitTime)
	}
	if c.Queue.MaxMessages < 0 || c.Queue.MaxMessages > queue.MaxReceive {
		return errors.Newf(errors.ErrInvalidConfig, "queue max messages %d outside 1..%d", c.Queue.MaxMessages, queue.MaxReceive)
	}
	if c.Athena.Table != "" && c.Athena.Database == "" {
		return errors.New(errors.ErrInvalidConfig, "athena table needs a database")
	}
	if c.Athena.Table != "" && c.S3.ParquetPrefix == "" {
		return errors.New(errors.ErrInvalidConfig, "athena partitions need s3.parquet-prefix")
	}
	if c.Dynamo.EnrichWebsite && c.Dynamo.AccountsTable == "" {
		return errors.New(errors.ErrInvalidConfig, "dynamo.enrich-website needs dynamo.accounts-table")
	}
	if c.S3.ParquetPrefix != "" && c.S3.Bucket == "" {
		return errors.New(errors.ErrInvalidConfig, "s3.parquet-prefix needs s3.bucket")
	}
	return nil
}

// Comma returns the parquet delimiter as a rune.
func (c *Config) Comma() (rune, error) {
	d := c.Parquet.Delimiter
	if d == "" {
		return ',', nil
	}
	if d == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(d)
	if size != len(d) || r == utf8.RuneError {
		return 0, errors.Newf(errors.ErrInvalidConfig, "delimiter %q must be one character", d)
	}
	return r, nil
}

// Logger builds the logger described by LogPath and LogLevel. Without a log
// path it writes to stderr. The returned closer releases the log file.
func (c *Config) Logger(stderr io.Writer) (logger.Logger, io.Closer, error) {
	var w io.Writer = stderr
	var closer io.Closer = nopCloser{}
	if c.LogPath != "" {
		fw, err := logger.NewFileWriter(c.LogPath)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "opening log file %s", c.LogPath)
		}
		w, closer = fw, fw
	}
	if w == nil {
		w = os.Stderr
	}
	log, err := logger.New(w, c.LogLevel)
	if err != nil {
		closer.Close()
		return nil, nil, errors.WithCode(err, errors.ErrInvalidConfig)
	}
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
