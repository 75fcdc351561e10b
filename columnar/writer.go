// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package columnar writes normalized report columns to Parquet files and
// reads them back for inspection.
package columnar

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/compress"
	"github.com/apache/arrow/go/v10/parquet/file"
	pqschema "github.com/apache/arrow/go/v10/parquet/schema"

	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
	"github.com/featurebasedb/reportload/schema"
	"github.com/featurebasedb/reportload/value"
)

// Fixed writer tuning. These are not tunable per call.
const (
	DataPageSize      = 8 * 1024
	MaxRowGroupLength = 1024 * 1024 * 1024
	WriteBatchSize    = 1024 * 1024
)

// Column is every raw cell of one schema column, in row order. A nil cell
// is missing.
type Column []*string

// SchemaArityError is returned when the column batches handed to WriteBatch
// do not line up with the schema or the row count.
type SchemaArityError struct {
	Column   string // empty when the column count is wrong
	Expected int
	Got      int
}

func (e *SchemaArityError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema has %d columns, got %d column batches", e.Expected, e.Got)
	}
	return fmt.Sprintf("column %s has %d values, expected %d rows", e.Column, e.Got, e.Expected)
}

func (e *SchemaArityError) ErrorCode() errors.Code { return errors.ErrSchemaArity }

// Writer writes one row group per WriteBatch call. The output is not a valid
// Parquet file until Close returns without error.
type Writer struct {
	schema schema.Schema
	pw     *file.Writer
	log    logger.Logger

	// set when the writer owns a local file
	f    *os.File
	path string

	rows   int64
	closed bool
}

// Option configures a Writer.
type Option func(*Writer)

// OptWriterLogger sets the logger used for row group progress.
func OptWriterLogger(l logger.Logger) Option {
	return func(w *Writer) {
		w.log = l
	}
}

// WriterProperties returns the fixed properties every artifact is written
// with: snappy compression, 8KiB pages, 1Gi row group length and 1Mi write
// batches.
func WriterProperties() *parquet.WriterProperties {
	return parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDataPageSize(DataPageSize),
		parquet.WithMaxRowGroupLength(MaxRowGroupLength),
		parquet.WithBatchSize(WriteBatchSize),
		parquet.WithCreatedBy("reportload"),
	)
}

// NewWriter starts a Parquet file for sch on w. The caller keeps ownership
// of w and closes it after Close.
func NewWriter(sch schema.Schema, w io.Writer, opts ...Option) (*Writer, error) {
	root, err := groupNode(sch)
	if err != nil {
		return nil, errors.Wrap(err, "building parquet schema")
	}
	cw := &Writer{
		schema: sch,
		log:    logger.NopLogger,
	}
	for _, opt := range opts {
		opt(cw)
	}
	// hide any Close method so the parquet writer never closes the sink
	sink := struct{ io.Writer }{w}
	cw.pw = file.NewParquetWriter(sink, root, file.WithWriterProps(WriterProperties()))
	return cw, nil
}

// Create opens path for writing, truncating any existing file.
func Create(sch schema.Schema, path string, opts ...Option) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", path)
	}
	w, err := NewWriter(sch, f, opts...)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	w.f, w.path = f, path
	return w, nil
}

func groupNode(sch schema.Schema) (*pqschema.GroupNode, error) {
	fields := make(pqschema.FieldList, 0, sch.Len())
	for _, c := range sch.Columns {
		var (
			node *pqschema.PrimitiveNode
			err  error
		)
		switch c.Type {
		case schema.Text:
			node, err = pqschema.NewPrimitiveNodeLogical(c.Name, parquet.Repetitions.Optional,
				pqschema.StringLogicalType{}, parquet.Types.ByteArray, -1, -1)
		case schema.Int32:
			node, err = pqschema.NewPrimitiveNode(c.Name, parquet.Repetitions.Optional, parquet.Types.Int32, -1, -1)
		case schema.Int64:
			node, err = pqschema.NewPrimitiveNode(c.Name, parquet.Repetitions.Optional, parquet.Types.Int64, -1, -1)
		case schema.Float:
			node, err = pqschema.NewPrimitiveNode(c.Name, parquet.Repetitions.Optional, parquet.Types.Float, -1, -1)
		default:
			err = errors.Errorf("unsupported type %s", c.Type)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", c.Name)
		}
		fields = append(fields, node)
	}
	return pqschema.NewGroupNode(sch.Name, parquet.Repetitions.Required, fields, -1)
}

// WriteBatch writes rowCount rows given as one batch per schema column. The
// whole call is one row group: every column is normalized before anything
// is written, so a bad cell leaves no partial row group behind.
func (w *Writer) WriteBatch(columns []Column, rowCount int) error {
	if w.closed {
		return errors.New(errors.ErrUncoded, "write on closed parquet writer")
	}
	if len(columns) != w.schema.Len() {
		return errors.WithStack(&SchemaArityError{Expected: w.schema.Len(), Got: len(columns)})
	}
	for i, c := range w.schema.Columns {
		if len(columns[i]) != rowCount {
			return errors.WithStack(&SchemaArityError{Column: c.Name, Expected: rowCount, Got: len(columns[i])})
		}
	}
	if rowCount == 0 {
		return nil
	}

	normalized := make([][]value.Value, len(columns))
	for i, c := range w.schema.Columns {
		vals, err := value.NormalizeColumn(columns[i], c.Type)
		if err != nil {
			return errors.Wrapf(err, "column %s", c.Name)
		}
		normalized[i] = vals
	}

	// every value is present; absence was resolved during normalization
	levels := make([]int16, rowCount)
	for i := range levels {
		levels[i] = 1
	}

	rgw := w.pw.AppendRowGroup()
	for i, c := range w.schema.Columns {
		cw, err := rgw.NextColumn()
		if err != nil {
			return errors.Wrapf(err, "opening column %s", c.Name)
		}
		if err := writeColumn(cw, normalized[i], levels); err != nil {
			return errors.Wrapf(err, "writing column %s", c.Name)
		}
	}
	if err := rgw.Close(); err != nil {
		return errors.Wrap(err, "closing row group")
	}
	w.rows += int64(rowCount)
	w.log.Debugf("wrote row group of %d rows, %d columns", rowCount, len(columns))
	return nil
}

func writeColumn(cw file.ColumnChunkWriter, vals []value.Value, levels []int16) error {
	var err error
	switch typed := cw.(type) {
	case *file.ByteArrayColumnChunkWriter:
		out := make([]parquet.ByteArray, len(vals))
		for i, v := range vals {
			out[i] = parquet.ByteArray(v.Text)
		}
		_, err = typed.WriteBatch(out, levels, nil)
	case *file.Int32ColumnChunkWriter:
		out := make([]int32, len(vals))
		for i, v := range vals {
			out[i] = v.Int32
		}
		_, err = typed.WriteBatch(out, levels, nil)
	case *file.Int64ColumnChunkWriter:
		out := make([]int64, len(vals))
		for i, v := range vals {
			out[i] = v.Int64
		}
		_, err = typed.WriteBatch(out, levels, nil)
	case *file.Float32ColumnChunkWriter:
		out := make([]float32, len(vals))
		for i, v := range vals {
			out[i] = v.Float
		}
		_, err = typed.WriteBatch(out, levels, nil)
	default:
		err = errors.Errorf("unexpected column writer %T", cw)
	}
	return err
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 { return w.rows }

// Path returns the local destination, if the writer was made by Create.
func (w *Writer) Path() string { return w.path }

// Close writes the footer. For writers made by Create it also closes the
// file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.pw.Close()
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
	}
	return errors.Wrap(err, "closing parquet writer")
}

// Abort closes the writer and removes a local destination. It is used after
// a failed WriteBatch, when the file must not be uploaded.
func (w *Writer) Abort() {
	if err := w.Close(); err != nil {
		w.log.Debugf("closing aborted parquet writer: %v", err)
	}
	if w.path != "" {
		os.Remove(w.path)
	}
}
