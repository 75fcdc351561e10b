// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package analytics submits queries to Athena so newly written Parquet
// artifacts become queryable.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/aws/aws-sdk-go/service/athena/athenaiface"

	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
)

// Client runs queries in one database and workgroup.
type Client struct {
	api athenaiface.AthenaAPI

	Database       string
	Workgroup      string
	OutputLocation string

	// PollInterval is how often Wait checks on a running query.
	PollInterval time.Duration

	Log logger.Logger
}

func New(api athenaiface.AthenaAPI, database string) *Client {
	return &Client{
		api:          api,
		Database:     database,
		PollInterval: time.Second,
		Log:          logger.NopLogger,
	}
}

// Submit starts query and returns its execution id without waiting for it.
func (c *Client) Submit(ctx context.Context, query string) (string, error) {
	in := &athena.StartQueryExecutionInput{
		QueryString: aws.String(query),
		QueryExecutionContext: &athena.QueryExecutionContext{
			Database: aws.String(c.Database),
		},
	}
	if c.Workgroup != "" {
		in.WorkGroup = aws.String(c.Workgroup)
	}
	if c.OutputLocation != "" {
		in.ResultConfiguration = &athena.ResultConfiguration{OutputLocation: aws.String(c.OutputLocation)}
	}
	out, err := c.api.StartQueryExecutionWithContext(ctx, in)
	if err != nil {
		return "", errors.WithCode(errors.Wrap(err, "starting query"), errors.ErrRemoteCall)
	}
	id := aws.StringValue(out.QueryExecutionId)
	c.Log.Debugf("started query %s: %s", id, query)
	return id, nil
}

// Wait polls until the execution finishes. A failed or cancelled query is
// an error carrying Athena's reason.
func (c *Client) Wait(ctx context.Context, id string) error {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()
	for {
		out, err := c.api.GetQueryExecutionWithContext(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(id),
		})
		if err != nil {
			return errors.WithCode(errors.Wrapf(err, "checking query %s", id), errors.ErrRemoteCall)
		}
		status := out.QueryExecution.Status
		switch state := aws.StringValue(status.State); state {
		case athena.QueryExecutionStateSucceeded:
			return nil
		case athena.QueryExecutionStateFailed, athena.QueryExecutionStateCancelled:
			return errors.Newf(errors.ErrRemoteCall, "query %s %s: %s", id, strings.ToLower(state), aws.StringValue(status.StateChangeReason))
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for query %s", id)
		case <-ticker.C:
		}
	}
}

// AddPartitionQuery builds the statement registering location as a
// partition of table. Partition keys are sorted so the statement is stable.
func AddPartitionQuery(table string, partition map[string]string, location string) string {
	keys := make([]string, 0, len(partition))
	for k := range partition {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	specs := make([]string, len(keys))
	for i, k := range keys {
		specs[i] = fmt.Sprintf("%s = '%s'", k, quote(partition[k]))
	}
	return fmt.Sprintf("ALTER TABLE %s ADD IF NOT EXISTS PARTITION (%s) LOCATION '%s'",
		table, strings.Join(specs, ", "), quote(location))
}

func quote(s string) string {
	return strings.Replace(s, "'", "''", -1)
}
