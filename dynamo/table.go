// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package dynamo is the DynamoDB key-value store: batched puts for the
// batch persister, and account lookups used to enrich report rows and to
// list accounts.
package dynamo

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/featurebasedb/reportload/batch"
	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
	"github.com/featurebasedb/reportload/record"
)

// AccountKeyField is the partition key of the accounts table.
const AccountKeyField = "account_id"

var _ batch.Store = &Store{}

// Store writes to and reads from DynamoDB tables.
type Store struct {
	client dynamodbiface.DynamoDBAPI

	// KeyFields are the attributes making up the tables' primary key. When
	// set, BatchWrite keeps only the last of several puts sharing a key,
	// since BatchWriteItem rejects a request carrying duplicates.
	KeyFields []string

	Log logger.Logger
}

func NewStore(client dynamodbiface.DynamoDBAPI) *Store {
	return &Store{
		client: client,
		Log:    logger.NopLogger,
	}
}

// BatchWrite puts items into table with one BatchWriteItem request. Every
// attribute is written as a string. Items DynamoDB leaves unprocessed are
// returned for the caller to retry.
func (s *Store) BatchWrite(ctx context.Context, table string, items []record.Item) ([]record.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > batch.MaxCapacity {
		return nil, errors.Newf(errors.ErrInvalidConfig, "%d items exceed the BatchWriteItem limit of %d", len(items), batch.MaxCapacity)
	}
	if deduped := s.dedupe(items); len(deduped) < len(items) {
		s.Log.Warnf("%s: %d of %d items share a key with a later item and were dropped", table, len(items)-len(deduped), len(items))
		items = deduped
	}
	requests := make([]*dynamodb.WriteRequest, len(items))
	for i, it := range items {
		requests[i] = &dynamodb.WriteRequest{
			PutRequest: &dynamodb.PutRequest{Item: toAttributes(it)},
		}
	}
	out, err := s.client.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]*dynamodb.WriteRequest{table: requests},
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeResourceNotFoundException {
			return nil, errors.WithCode(errors.Wrapf(err, "table %s", table), errors.ErrNotFound)
		}
		return nil, errors.Wrapf(err, "batch writing %d items to %s", len(items), table)
	}

	var unprocessed []record.Item
	for _, wr := range out.UnprocessedItems[table] {
		if wr.PutRequest == nil {
			continue
		}
		unprocessed = append(unprocessed, fromAttributes(wr.PutRequest.Item))
	}
	if len(unprocessed) > 0 {
		s.Log.Debugf("%s left %d of %d items unprocessed", table, len(unprocessed), len(items))
	}
	return unprocessed, nil
}

// dedupe drops every item whose key a later item repeats. Order is
// otherwise kept.
func (s *Store) dedupe(items []record.Item) []record.Item {
	if len(s.KeyFields) == 0 {
		return items
	}
	last := make(map[string]int, len(items))
	keys := make([]string, len(items))
	for i, it := range items {
		parts := make([]string, len(s.KeyFields))
		for j, f := range s.KeyFields {
			parts[j] = it[f]
		}
		keys[i] = strings.Join(parts, "\x00")
		last[keys[i]] = i
	}
	if len(last) == len(items) {
		return items
	}
	out := make([]record.Item, 0, len(last))
	for i, it := range items {
		if last[keys[i]] == i {
			out = append(out, it)
		}
	}
	return out
}

func toAttributes(it record.Item) map[string]*dynamodb.AttributeValue {
	attrs := make(map[string]*dynamodb.AttributeValue, len(it))
	for k, v := range it {
		attrs[k] = &dynamodb.AttributeValue{S: aws.String(v)}
	}
	return attrs
}

// fromAttributes flattens scalar attributes to strings. Other attribute
// kinds are skipped.
func fromAttributes(attrs map[string]*dynamodb.AttributeValue) record.Item {
	it := make(record.Item, len(attrs))
	for k, av := range attrs {
		if s, ok := attributeString(av); ok {
			it[k] = s
		}
	}
	return it
}

func attributeString(av *dynamodb.AttributeValue) (string, bool) {
	switch {
	case av == nil:
		return "", false
	case av.S != nil:
		return *av.S, true
	case av.N != nil:
		return *av.N, true
	case av.BOOL != nil:
		return strconv.FormatBool(*av.BOOL), true
	case av.NULL != nil && *av.NULL:
		return "", true
	}
	return "", false
}

// Accounts splits the account ids of an accounts table by their is_af flag.
type Accounts struct {
	AF    []int64
	NotAF []int64
}

// Accounts scans table and sorts every account into AF or NotAF. Ids come
// back in ascending order.
func (s *Store) Accounts(ctx context.Context, table string) (Accounts, error) {
	var (
		accts   Accounts
		scanErr error
	)
	err := s.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(table),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			raw, ok := attributeString(item[AccountKeyField])
			if !ok {
				scanErr = errors.Newf(errors.ErrNotFound, "account in %s has no %s", table, AccountKeyField)
				return false
			}
			id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				scanErr = errors.Wrapf(err, "account id %q in %s", raw, table)
				return false
			}
			if isAF(item["is_af"]) {
				accts.AF = append(accts.AF, id)
			} else {
				accts.NotAF = append(accts.NotAF, id)
			}
		}
		return true
	})
	if err != nil {
		return Accounts{}, errors.WithCode(errors.Wrapf(err, "scanning %s", table), errors.ErrRemoteCall)
	}
	if scanErr != nil {
		return Accounts{}, scanErr
	}
	sort.Slice(accts.AF, func(i, j int) bool { return accts.AF[i] < accts.AF[j] })
	sort.Slice(accts.NotAF, func(i, j int) bool { return accts.NotAF[i] < accts.NotAF[j] })
	s.Log.Infof("%s: %d af accounts, %d other accounts", table, len(accts.AF), len(accts.NotAF))
	return accts, nil
}

func isAF(av *dynamodb.AttributeValue) bool {
	if av != nil && av.BOOL != nil {
		return *av.BOOL
	}
	v, _ := attributeString(av)
	return v == "true"
}

// Website returns the website recorded for accountID, which is empty if the
// account has none. A missing account is an ErrNotFound.
func (s *Store) Website(ctx context.Context, table, accountID string) (string, error) {
	out, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]*dynamodb.AttributeValue{
			AccountKeyField: {S: aws.String(accountID)},
		},
	})
	if err != nil {
		return "", errors.WithCode(errors.Wrapf(err, "getting account %s from %s", accountID, table), errors.ErrRemoteCall)
	}
	if len(out.Item) == 0 {
		return "", errors.Newf(errors.ErrNotFound, "account %s not in %s", accountID, table)
	}
	website, _ := attributeString(out.Item["website"])
	return website, nil
}

// WebsiteField is the attribute Websites adds to a record.
const WebsiteField = "website"

// Websites adds an account's website to records keyed by account id. Each
// account is read once.
type Websites struct {
	store *Store
	table string
	cache map[string]string
}

// NewWebsites looks websites up in the accounts table.
func NewWebsites(store *Store, table string) *Websites {
	return &Websites{
		store: store,
		table: table,
		cache: make(map[string]string),
	}
}

// Enrich returns the website field for accountID. An account missing from
// the table gets an empty website.
func (w *Websites) Enrich(ctx context.Context, accountID string) ([]record.Field, error) {
	website, ok := w.cache[accountID]
	if !ok {
		var err error
		website, err = w.store.Website(ctx, w.table, accountID)
		if err != nil {
			if !errors.Is(err, errors.ErrNotFound) {
				return nil, err
			}
			w.store.Log.Debugf("%v", err)
		}
		w.cache[accountID] = website
	}
	return []record.Field{{Name: WebsiteField, Value: website}}, nil
}
