// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package record turns domain records into flat string items for the
// key-value store.
//
// Records declare their fields explicitly, in order, through the Record
// interface; nothing is discovered by reflection over struct members.
package record

import (
	"fmt"

	"github.com/featurebasedb/reportload/errors"
)

// Field is one named attribute of a record.
type Field struct {
	Name  string
	Value interface{}
}

// Record is anything which can list its persistable fields.
type Record interface {
	Fields() []Field
}

// Item is an encoded record: every attribute is a string.
type Item map[string]string

// FieldList is a Record built up by hand.
type FieldList []Field

// NewFields starts an empty FieldList.
func NewFields() FieldList {
	return FieldList{}
}

// Add appends a field and returns the extended list.
func (fl FieldList) Add(name string, v interface{}) FieldList {
	return append(fl, Field{Name: name, Value: v})
}

func (fl FieldList) Fields() []Field { return fl }

// EncodingError is returned when a record has a field which cannot be
// rendered as an item attribute.
type EncodingError struct {
	Field  string
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	msg := fmt.Sprintf("encoding field %q: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodingError) Unwrap() error          { return e.Err }
func (e *EncodingError) ErrorCode() errors.Code { return errors.ErrEncoding }
