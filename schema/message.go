// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package schema

import (
	"strings"
	"unicode"

	"github.com/featurebasedb/reportload/errors"
)

// Parse reads a flat Parquet message-type declaration. Only required or
// optional primitive columns of type binary, int32, int64 and float are
// accepted; nested groups and repeated fields are rejected.
func Parse(decl string) (Schema, error) {
	p := &messageParser{toks: tokenize(decl)}
	s, err := p.parse()
	if err != nil {
		return Schema{}, errors.WithCode(errors.Wrap(err, "parsing schema"), errors.ErrInvalidConfig)
	}
	return s, nil
}

// MustParse is Parse that panics, for declarations known at compile time.
func MustParse(decl string) Schema {
	s, err := Parse(decl)
	if err != nil {
		panic(err)
	}
	return s
}

func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			flush()
		case strings.ContainsRune("{};()", r):
			flush()
			toks = append(toks, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

type messageParser struct {
	toks []string
	pos  int
}

func (p *messageParser) next() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *messageParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *messageParser) expect(tok string) error {
	if got := p.next(); got != tok {
		return errors.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

func (p *messageParser) parse() (Schema, error) {
	if err := p.expect("message"); err != nil {
		return Schema{}, err
	}
	name := p.next()
	if name == "" || name == "{" {
		return Schema{}, errors.Errorf("message has no name")
	}
	if err := p.expect("{"); err != nil {
		return Schema{}, err
	}
	var cols []Column
	for p.peek() != "}" {
		if p.peek() == "" {
			return Schema{}, errors.Errorf("unterminated message")
		}
		col, err := p.column()
		if err != nil {
			return Schema{}, errors.Wrapf(err, "column %d", len(cols))
		}
		cols = append(cols, col)
	}
	p.next()
	if rest := p.next(); rest != "" {
		return Schema{}, errors.Errorf("unexpected %q after message", rest)
	}
	return New(name, cols...)
}

func (p *messageParser) column() (Column, error) {
	switch rep := p.next(); rep {
	case "required", "optional":
	case "repeated":
		return Column{}, errors.Errorf("repeated columns are not supported")
	default:
		return Column{}, errors.Errorf("expected repetition, got %q", rep)
	}

	var col Column
	switch phys := strings.ToLower(p.next()); phys {
	case "binary", "byte_array":
		col.Type = Text
	case "int32":
		col.Type = Int32
	case "int64":
		col.Type = Int64
	case "float":
		col.Type = Float
	case "group":
		return Column{}, errors.Errorf("nested groups are not supported")
	default:
		return Column{}, errors.Errorf("unsupported physical type %q", phys)
	}

	col.Name = p.next()
	if col.Name == "" || strings.ContainsAny(col.Name, "{};()") {
		return Column{}, errors.Errorf("bad column name %q", col.Name)
	}

	if p.peek() == "(" {
		p.next()
		logical := strings.ToUpper(p.next())
		if col.Type == Text && logical != "UTF8" && logical != "STRING" {
			return Column{}, errors.Errorf("unsupported annotation %q on %s", logical, col.Name)
		}
		if err := p.expect(")"); err != nil {
			return Column{}, err
		}
	}
	return col, p.expect(";")
}
