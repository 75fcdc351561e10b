// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package value coerces raw report cells into typed values.
//
// Report exports use a few sentinel spellings which override generic number
// parsing: an empty cell or " --" means zero for numeric columns, and
// percentage columns may hold "< 10%" or "> 90%" instead of a number.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/schema"
)

const (
	// Missing is the export's spelling of "no data" in numeric columns.
	Missing = " --"

	BelowTenPercent    = "< 10%"
	AboveNinetyPercent = "> 90%"
)

// Value is a normalized cell. Exactly one of the payload fields is
// meaningful, selected by Type.
type Value struct {
	Type  schema.Type
	Text  string
	Int32 int32
	Int64 int64
	Float float32
}

func TextValue(s string) Value { return Value{Type: schema.Text, Text: s} }
func Int32Value(v int32) Value { return Value{Type: schema.Int32, Int32: v} }
func Int64Value(v int64) Value { return Value{Type: schema.Int64, Int64: v} }
func FloatValue(v float32) Value { return Value{Type: schema.Float, Float: v} }

// Zero returns the value absent cells normalize to.
func Zero(t schema.Type) Value {
	return Value{Type: t}
}

// String renders v as text which Normalize maps back to v.
func (v Value) String() string {
	switch v.Type {
	case schema.Int32:
		return strconv.FormatInt(int64(v.Int32), 10)
	case schema.Int64:
		return strconv.FormatInt(v.Int64, 10)
	case schema.Float:
		return strconv.FormatFloat(float64(v.Float), 'g', -1, 32)
	}
	return v.Text
}

// ValueParseError reports a cell which is neither a sentinel nor a number of
// the declared type.
type ValueParseError struct {
	Raw  string
	Type schema.Type
	Err  error
}

func (e *ValueParseError) Error() string {
	return fmt.Sprintf("cannot parse %q as %s", e.Raw, e.Type)
}

func (e *ValueParseError) Unwrap() error { return e.Err }
func (e *ValueParseError) ErrorCode() errors.Code { return errors.ErrValueParse }

// Normalize converts raw into a value of type t. A nil raw is a missing
// cell.
func Normalize(raw *string, t schema.Type) (Value, error) {
	if t == schema.Text {
		if raw == nil {
			return TextValue(""), nil
		}
		return TextValue(*raw), nil
	}
	if raw == nil || *raw == "" || *raw == Missing {
		return Zero(t), nil
	}
	s := *raw

	switch t {
	case schema.Int32:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return Value{}, &ValueParseError{Raw: s, Type: t, Err: err}
		}
		return Int32Value(int32(n)), nil
	case schema.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return Value{}, &ValueParseError{Raw: s, Type: t, Err: err}
		}
		return Int64Value(n), nil
	case schema.Float:
		return normalizeFloat(s)
	}
	return Value{}, &ValueParseError{Raw: s, Type: t, Err: errors.Errorf("unsupported type %s", t)}
}

func normalizeFloat(s string) (Value, error) {
	if !strings.Contains(s, "%") {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return Value{}, &ValueParseError{Raw: s, Type: schema.Float, Err: err}
		}
		return FloatValue(float32(f)), nil
	}
	switch s {
	case BelowTenPercent:
		return FloatValue(0.05), nil
	case AboveNinetyPercent:
		return FloatValue(0.95), nil
	}
	pct := strings.TrimSpace(strings.Replace(s, "%", "", -1))
	f, err := strconv.ParseFloat(pct, 32)
	if err != nil {
		return Value{}, &ValueParseError{Raw: s, Type: schema.Float, Err: err}
	}
	return FloatValue(float32(f) / 100), nil
}

// Ptr returns a pointer to s, for building column batches by hand.
func Ptr(s string) *string { return &s }
