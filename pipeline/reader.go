// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package pipeline

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
	"github.com/featurebasedb/reportload/schema"
)

// Row is one report line keyed by normalized column name. A column which is
// absent from the map, or nil, is missing.
type Row map[string]*string

// Reader reads delimited report text. The first line is the header; its
// cells are normalized with schema.NormalizeName and become the Row keys.
type Reader struct {
	Name string // used in log messages
	Log  logger.Logger

	r         *csv.Reader
	header    []string
	rawHeader []string
	extra     int
	line      int
}

// NewReader returns a Reader splitting fields on comma.
func NewReader(r io.Reader, comma rune) *Reader {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	// reports can have short or long lines; see Next
	cr.FieldsPerRecord = -1
	return &Reader{
		Name: "report",
		Log:  logger.NopLogger,
		r:    cr,
	}
}

// Header reads the header line if it has not been read yet and returns the
// normalized column names.
func (r *Reader) Header() ([]string, error) {
	if r.header != nil {
		return r.header, nil
	}
	rec, err := r.r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.Newf(errors.ErrInvalidConfig, "%s has no header", r.Name)
		}
		return nil, errors.Wrapf(err, "reading header from '%s'", r.Name)
	}
	r.line++
	r.rawHeader = make([]string, len(rec))
	r.header = make([]string, len(rec))
	for i, cell := range rec {
		if i == 0 {
			cell = strings.TrimPrefix(cell, "\ufeff")
		}
		r.rawHeader[i] = cell
		r.header[i] = schema.NormalizeName(stripType(cell))
	}
	return r.header, nil
}

// RawHeader returns the header cells as written, after Header has been
// read.
func (r *Reader) RawHeader() []string {
	return r.rawHeader
}

// stripType drops a "__Type" suffix from a header declaration.
func stripType(cell string) string {
	if i := strings.LastIndex(cell, "__"); i > 0 {
		if _, err := schema.ParseType(cell[i+2:]); err == nil {
			return cell[:i]
		}
	}
	return cell
}

// Next returns the next row, or io.EOF. Cells beyond the header are
// ignored with a single warning; a short line leaves its trailing columns
// missing.
func (r *Reader) Next() (Row, error) {
	if _, err := r.Header(); err != nil {
		return nil, err
	}
	rec, err := r.r.Read()
	if err == io.EOF {
		if r.extra > 0 {
			r.Log.Printf("Processing '%s': %d rows have more columns than the header", r.Name, r.extra)
		}
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading '%s' after line %d", r.Name, r.line)
	}
	r.line++

	row := make(Row, len(r.header))
	for j, val := range rec {
		if j >= len(r.header) {
			if r.extra == 0 {
				r.Log.Warnf("'%s': ignoring additional column(s) not included in the header", r.Name)
			}
			r.extra++
			break
		}
		v := val
		row[r.header[j]] = &v
	}
	return row, nil
}

// ReadAll reads every remaining row.
func (r *Reader) ReadAll() ([]Row, error) {
	var rows []Row
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
