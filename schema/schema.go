// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package schema declares the typed columns a report is coerced into. A
// schema is written either in the Parquet message-type grammar
//
//	message report { required int64 clicks; required float ctr; required binary campaign (UTF8); }
//
// or as a list of FeatureBase style header fields such as "clicks__Int64".
package schema

import (
	"fmt"
	"strings"

	"github.com/featurebasedb/reportload/errors"
)

// Type is the declared primitive type of a column.
type Type int

const (
	Text Type = iota
	Int32
	Int64
	Float
)

func (t Type) String() string {
	switch t {
	case Text:
		return "text"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float:
		return "float"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Numeric reports whether values of t are numbers.
func (t Type) Numeric() bool {
	return t == Int32 || t == Int64 || t == Float
}

// ParseType accepts the names used in header declarations. It is case
// insensitive.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "text", "string", "binary":
		return Text, nil
	case "int32":
		return Int32, nil
	case "int64", "int":
		return Int64, nil
	case "float":
		return Float, nil
	}
	return 0, errors.Newf(errors.ErrInvalidConfig, "unknown column type %q", s)
}

// Column is one named, typed column.
type Column struct {
	Name string
	Type Type
}

// Schema is an ordered set of columns. Column order is the order in which
// column batches must be handed to the columnar writer.
type Schema struct {
	Name    string
	Columns []Column
}

// New builds a schema from columns, rejecting empty and duplicate names.
func New(name string, columns ...Column) (Schema, error) {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return Schema{}, errors.New(errors.ErrInvalidConfig, "column with empty name")
		}
		if _, ok := seen[c.Name]; ok {
			return Schema{}, errors.Newf(errors.ErrInvalidConfig, "duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	if name == "" {
		name = "schema"
	}
	return Schema{Name: name, Columns: columns}, nil
}

// MustNew is New for tests and package level declarations.
func MustNew(name string, columns ...Column) Schema {
	s, err := New(name, columns...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Schema) Len() int { return len(s.Columns) }

func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// String renders s in the message-type grammar accepted by Parse.
func (s Schema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "message %s {\n", s.Name)
	for _, c := range s.Columns {
		switch c.Type {
		case Text:
			fmt.Fprintf(&b, "  optional binary %s (UTF8);\n", c.Name)
		case Float:
			fmt.Fprintf(&b, "  optional float %s;\n", c.Name)
		default:
			fmt.Fprintf(&b, "  optional %s %s;\n", c.Type, c.Name)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// ParseHeader turns header declarations like "clicks__Int64" into a schema.
// A declaration without a "__Type" suffix is a text column.
func ParseHeader(name string, fields []string) (Schema, error) {
	cols := make([]Column, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		colName, typ := f, "text"
		if i := strings.LastIndex(f, "__"); i >= 0 {
			colName, typ = f[:i], f[i+2:]
		}
		t, err := ParseType(typ)
		if err != nil {
			return Schema{}, errors.Wrapf(err, "header field %q", f)
		}
		cols = append(cols, Column{Name: colName, Type: t})
	}
	return New(name, cols...)
}
