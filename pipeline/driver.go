// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package pipeline reads a report, writes its columns as one Parquet row
// group and persists one record per row to the key-value store.
//
// The two writes are independent: a failed key-value write does not undo
// the columnar artifact, and the columnar write comes first.
package pipeline

import (
	"context"
	"io"
	"strings"

	"github.com/featurebasedb/reportload/batch"
	"github.com/featurebasedb/reportload/columnar"
	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
	"github.com/featurebasedb/reportload/record"
	"github.com/featurebasedb/reportload/schema"
	"github.com/featurebasedb/reportload/value"
)

// SourceKeyField is the attribute naming the report a record came from.
const SourceKeyField = "source_key"

// ColumnSink receives every column of the report at once.
type ColumnSink interface {
	WriteBatch(columns []columnar.Column, rowCount int) error
}

// RecordSink receives one record per row and is drained at the end.
type RecordSink interface {
	Submit(ctx context.Context, table string, rec record.Record) error
	Drain(ctx context.Context) (batch.Report, error)
}

// Enricher returns extra fields for the record with the given key.
type Enricher interface {
	Enrich(ctx context.Context, key string) ([]record.Field, error)
}

var (
	_ ColumnSink = &columnar.Writer{}
	_ RecordSink = &batch.Persister{}
)

// Driver runs one report through the writer and the persister. Either may
// be nil.
type Driver struct {
	// Schema declares the columns. When it has no columns it is read from
	// the header's "name__Type" declarations.
	Schema schema.Schema

	Writer    ColumnSink
	Persister RecordSink

	// Table receives the records. KeyField names the column every record
	// is addressed by; rows where it is empty are not persisted.
	Table    string
	KeyField string

	// SourceKey, when set, is stored on every record as source_key.
	SourceKey string

	// Enricher, when set, adds fields to every persisted record.
	Enricher Enricher

	// Comma is the field delimiter used by Run. Zero means ','.
	Comma rune

	Log logger.Logger
}

// Result summarizes a run.
type Result struct {
	Rows    int
	Columns int
	// Skipped counts rows left out of the key-value store.
	Skipped int
	// Columnar is set once the row group has been handed to the writer.
	Columnar bool
	Batch    batch.Report
}

// Run reads delimited text from r.
func (d *Driver) Run(ctx context.Context, r io.Reader) (Result, error) {
	comma := d.Comma
	if comma == 0 {
		comma = ','
	}
	rr := NewReader(r, comma)
	rr.Log = d.log()
	return d.RunReader(ctx, rr)
}

func (d *Driver) log() logger.Logger {
	if d.Log == nil {
		return logger.NopLogger
	}
	return d.Log
}

// RunReader is Run on an existing Reader.
func (d *Driver) RunReader(ctx context.Context, rr *Reader) (Result, error) {
	log := d.log()
	sch, err := ResolveSchema(d.Schema, rr)
	if err != nil {
		return Result{}, err
	}
	rows, err := rr.ReadAll()
	if err != nil {
		return Result{}, err
	}
	CounterRowsRead.Add(float64(len(rows)))
	res := Result{Rows: len(rows), Columns: sch.Len()}
	log.Infof("read %d rows of %d columns", res.Rows, res.Columns)

	if d.Writer != nil {
		columns := Columns(sch, rows)
		if err := d.Writer.WriteBatch(columns, len(rows)); err != nil {
			return res, errors.Wrap(err, "writing columns")
		}
		CounterRowGroups.Inc()
		res.Columnar = true
	}

	if d.Persister == nil {
		return res, nil
	}
	if d.Table == "" {
		return res, errors.New(errors.ErrInvalidConfig, "persisting rows needs a table")
	}

	var submitErr error
	for i, row := range rows {
		rec, err := NewRowRecord(sch, row, d.KeyField)
		if err != nil {
			return res, errors.Wrapf(err, "row %d", i)
		}
		if d.KeyField != "" && rec.Key == "" {
			log.Warnf("row %d has no %s, not persisting it", i, d.KeyField)
			CounterRowsSkipped.WithLabelValues("no_key").Inc()
			res.Skipped++
			continue
		}
		rec.SourceKey = d.SourceKey
		if d.Enricher != nil {
			if rec.Extra, err = d.Enricher.Enrich(ctx, rec.Key); err != nil {
				submitErr = errors.Wrapf(err, "enriching row %d", i)
				break
			}
		}
		if err := d.Persister.Submit(ctx, d.Table, rec); err != nil {
			if errors.Is(err, errors.ErrEncoding) {
				log.Warnf("row %d: %v", i, err)
				CounterRowsSkipped.WithLabelValues("encoding").Inc()
				res.Skipped++
				continue
			}
			submitErr = errors.Wrapf(err, "submitting row %d", i)
			break
		}
	}

	// join every flush, including after a failed submit, so in-flight
	// writes are accounted for
	res.Batch, err = d.Persister.Drain(ctx)
	if err != nil {
		return res, errors.Wrap(err, "persisting rows")
	}
	if submitErr != nil {
		return res, submitErr
	}
	log.Infof("persisted %d of %d records to %s in %d batches", res.Batch.Written, res.Batch.Submitted, d.Table, res.Batch.Batches)
	return res, nil
}

// ResolveSchema reads rr's header and returns the schema rows are
// normalized against: sch when it has columns, otherwise the header's
// "name__Type" declarations. Column names are normalized the way header
// cells are. A declared column the header does not carry is an
// ErrSchemaArity.
func ResolveSchema(sch schema.Schema, rr *Reader) (schema.Schema, error) {
	header, err := rr.Header()
	if err != nil {
		return schema.Schema{}, err
	}
	declared := sch
	if declared.Len() == 0 {
		declared, err = schema.ParseHeader(sch.Name, rr.RawHeader())
		if err != nil {
			return schema.Schema{}, errors.Wrap(err, "reading schema from header")
		}
	} else {
		declared.Columns = append([]schema.Column(nil), declared.Columns...)
	}
	inHeader := make(map[string]bool, len(header))
	for _, name := range header {
		inHeader[name] = true
	}
	var missing []string
	for i := range declared.Columns {
		name := schema.NormalizeName(declared.Columns[i].Name)
		declared.Columns[i].Name = name
		if !inHeader[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return schema.Schema{}, errors.Newf(errors.ErrSchemaArity, "%s: header %v lacks declared column(s) %s",
			rr.Name, header, strings.Join(missing, ", "))
	}
	return schema.New(declared.Name, declared.Columns...)
}

// Columns transposes rows into one column batch per schema column.
func Columns(sch schema.Schema, rows []Row) []columnar.Column {
	columns := make([]columnar.Column, sch.Len())
	for i, c := range sch.Columns {
		col := make(columnar.Column, len(rows))
		for j, row := range rows {
			col[j] = row[c.Name]
		}
		columns[i] = col
	}
	return columns
}

// RowRecord is a row with every schema column normalized. Its fields are
// the key field first, then the schema columns in order, then Extra, then
// source_key.
type RowRecord struct {
	KeyField  string
	Key       string
	Schema    schema.Schema
	Values    []value.Value
	Extra     []record.Field
	SourceKey string
}

// NewRowRecord normalizes row against sch. The key is taken from the
// normalized key column, or from the raw row when the key is not a schema
// column. An empty or " --" key cell leaves Key empty.
func NewRowRecord(sch schema.Schema, row Row, keyField string) (RowRecord, error) {
	rec := RowRecord{
		KeyField: keyField,
		Schema:   sch,
		Values:   make([]value.Value, sch.Len()),
	}
	for i, c := range sch.Columns {
		v, err := value.Normalize(row[c.Name], c.Type)
		if err != nil {
			return RowRecord{}, errors.Wrapf(err, "column %s", c.Name)
		}
		rec.Values[i] = v
	}
	if keyField == "" {
		return rec, nil
	}
	raw := row[keyField]
	if isMissingKey(raw) {
		return rec, nil
	}
	if i := sch.Index(keyField); i >= 0 {
		rec.Key = rec.Values[i].String()
	} else {
		rec.Key = *raw
	}
	return rec, nil
}

// isMissingKey reports whether a key cell is empty or the export's "no
// data" sentinel, which would otherwise normalize to a shared zero key.
func isMissingKey(raw *string) bool {
	if raw == nil {
		return true
	}
	k := strings.TrimSpace(*raw)
	return k == "" || k == strings.TrimSpace(value.Missing)
}

func (r RowRecord) Fields() []record.Field {
	fields := make([]record.Field, 0, len(r.Values)+len(r.Extra)+2)
	if r.KeyField != "" {
		fields = append(fields, record.Field{Name: r.KeyField, Value: r.Key})
	}
	for i, c := range r.Schema.Columns {
		if c.Name == r.KeyField {
			continue
		}
		fields = append(fields, record.Field{Name: c.Name, Value: r.Values[i].String()})
	}
	fields = append(fields, r.Extra...)
	if r.SourceKey != "" {
		fields = append(fields, record.Field{Name: SourceKeyField, Value: r.SourceKey})
	}
	return fields
}
