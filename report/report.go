// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package report holds the JSON configuration documents which describe a
// report export and the account it belongs to.
package report

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/record"
	"github.com/featurebasedb/reportload/schema"
	"github.com/featurebasedb/reportload/storage"
)

// ReportConfig describes one report export: how to read it and where its
// rows go.
type ReportConfig struct {
	Name       string `json:"name"`
	ReportType string `json:"report_type"`

	// Schema is a message-type declaration. When empty, Columns is read as
	// header declarations ("clicks__Int64").
	Schema  string   `json:"schema,omitempty"`
	Columns []string `json:"fields,omitempty"`

	Delimiter string `json:"delimiter,omitempty"`
	Table     string `json:"table,omitempty"`
	KeyField  string `json:"key_field,omitempty"`

	DateRange string `json:"date_range,omitempty"`
	Enabled   bool   `json:"enabled"`
}

func (c ReportConfig) Fields() []record.Field {
	return []record.Field{
		{Name: "name", Value: c.Name},
		{Name: "report_type", Value: c.ReportType},
		{Name: "schema", Value: c.Schema},
		{Name: "fields", Value: c.Columns},
		{Name: "delimiter", Value: c.Delimiter},
		{Name: "table", Value: c.Table},
		{Name: "key_field", Value: c.KeyField},
		{Name: "date_range", Value: c.DateRange},
		{Name: "enabled", Value: c.Enabled},
	}
}

// ColumnSchema returns the schema the report's rows are coerced into.
func (c ReportConfig) ColumnSchema() (schema.Schema, error) {
	if c.Schema != "" {
		return schema.Parse(c.Schema)
	}
	if len(c.Columns) == 0 {
		return schema.Schema{}, errors.Newf(errors.ErrInvalidConfig, "report %q declares no schema or fields", c.Name)
	}
	return schema.ParseHeader(c.Name, c.Columns)
}

// Comma returns the configured delimiter, defaulting to a comma.
func (c ReportConfig) Comma() (rune, error) {
	if c.Delimiter == "" {
		return ',', nil
	}
	r, size := utf8.DecodeRuneInString(c.Delimiter)
	if size != len(c.Delimiter) || r == utf8.RuneError {
		return 0, errors.Newf(errors.ErrInvalidConfig, "delimiter %q must be one character", c.Delimiter)
	}
	return r, nil
}

// AdwordsConfiguration is an advertising account and the reports pulled
// for it.
type AdwordsConfiguration struct {
	AccountID        string         `json:"account_id"`
	ClientCustomerID string         `json:"client_customer_id"`
	Name             string         `json:"name"`
	Currency         string         `json:"currency"`
	TimeZone         string         `json:"time_zone"`
	Website          string         `json:"website,omitempty"`
	IsAF             bool           `json:"is_af"`
	Reports          []ReportConfig `json:"reports,omitempty"`
}

// Fields lists the account attributes. Reports are stored by name only.
func (a AdwordsConfiguration) Fields() []record.Field {
	names := make([]string, len(a.Reports))
	for i, r := range a.Reports {
		names[i] = r.Name
	}
	return []record.Field{
		{Name: "account_id", Value: a.AccountID},
		{Name: "client_customer_id", Value: a.ClientCustomerID},
		{Name: "name", Value: a.Name},
		{Name: "currency", Value: a.Currency},
		{Name: "time_zone", Value: a.TimeZone},
		{Name: "website", Value: a.Website},
		{Name: "is_af", Value: a.IsAF},
		{Name: "reports", Value: names},
	}
}

// Report returns the named report configuration.
func (a AdwordsConfiguration) Report(name string) (ReportConfig, bool) {
	for _, r := range a.Reports {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return ReportConfig{}, false
}

func decode(r io.Reader, v interface{}, what string) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return errors.WithCode(errors.Wrapf(err, "decoding %s", what), errors.ErrInvalidConfig)
	}
	return nil
}

func ParseReportConfig(r io.Reader) (ReportConfig, error) {
	var c ReportConfig
	err := decode(r, &c, "report config")
	return c, err
}

func ParseAdwordsConfiguration(r io.Reader) (AdwordsConfiguration, error) {
	var a AdwordsConfiguration
	err := decode(r, &a, "adwords configuration")
	return a, err
}

// LoadReportConfig reads a report config from a local path or s3 URL.
func LoadReportConfig(ctx context.Context, name string, s3client s3iface.S3API) (ReportConfig, error) {
	rc, err := storage.OpenFileOrURL(ctx, name, s3client)
	if err != nil {
		return ReportConfig{}, err
	}
	defer rc.Close()
	c, err := ParseReportConfig(rc)
	return c, errors.WithMessagef(err, "loading %s", name)
}

// LoadAdwordsConfiguration reads an account configuration from a local path
// or s3 URL.
func LoadAdwordsConfiguration(ctx context.Context, name string, s3client s3iface.S3API) (AdwordsConfiguration, error) {
	rc, err := storage.OpenFileOrURL(ctx, name, s3client)
	if err != nil {
		return AdwordsConfiguration{}, err
	}
	defer rc.Close()
	a, err := ParseAdwordsConfiguration(rc)
	return a, errors.WithMessagef(err, "loading %s", name)
}
