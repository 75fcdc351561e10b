// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package errors wraps pkg/errors and adds error codes so callers can
// classify ingest failures (parse, arity, encoding, store rejection, remote
// call) without matching on message text.
package errors

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Code is an error code which can be used to check against a given error. For
// example, see the Is() method.
type Code string

const (
	ErrUncoded        Code = "Uncoded"
	ErrValueParse     Code = "ValueParse"
	ErrSchemaArity    Code = "SchemaArity"
	ErrEncoding       Code = "Encoding"
	ErrStoreRejection Code = "StoreRejection"
	ErrRemoteCall     Code = "RemoteCall"
	ErrUnknownOutcome Code = "UnknownOutcome"
	ErrInvalidConfig  Code = "InvalidConfig"
	ErrNotFound       Code = "NotFound"
)

// Coder is implemented by typed errors which carry their own code, such as
// value.ValueParseError. Is treats them the same as errors built with New.
type Coder interface {
	ErrorCode() Code
}

func New(code Code, message string) error {
	return errors.WithStack(codedError{
		Code:    code,
		Message: message,
	})
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...interface{}) error {
	return errors.WithStack(codedError{
		Code:    code,
		Message: errors.Errorf(format, args...).Error(),
	})
}

// WithCode attaches code to err while keeping err in the chain, so both
// Is(err, code) and errors.As against the original type keep working.
func WithCode(err error, code Code) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(wrappedCode{code: code, err: err})
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func Cause(err error) error {
	return errors.Cause(err)
}

func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Is is a fork of the Is() method from `pkg/errors` which takes as its target
// an error Code instead of an error. It walks the whole chain, so a coded
// error wrapped any number of times still matches.
func Is(err error, target Code) bool {
	for err != nil {
		if c, ok := err.(Coder); ok && c.ErrorCode() == target {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// CodeOf returns the first code found in err's chain, or ErrUncoded.
func CodeOf(err error) Code {
	for err != nil {
		if c, ok := err.(Coder); ok {
			return c.ErrorCode()
		}
		err = errors.Unwrap(err)
	}
	return ErrUncoded
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func WithMessage(err error, message string) error {
	return errors.WithMessage(err, message)
}

func WithMessagef(err error, format string, args ...interface{}) error {
	return errors.WithMessagef(err, format, args...)
}

func WithStack(err error) error {
	return errors.WithStack(err)
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, fmt string, args ...interface{}) error {
	return errors.Wrapf(err, fmt, args...)
}

// codedError is the fundamental type used by this package to provide coded
// errors.
type codedError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Wrapped string `json:"wrapped,omitempty"`
}

func (ce codedError) Error() string {
	if ce.Wrapped != "" {
		return ce.Wrapped
	}
	return ce.Message
}

func (ce codedError) ErrorCode() Code { return ce.Code }

type wrappedCode struct {
	code Code
	err  error
}

func (w wrappedCode) Error() string   { return w.err.Error() }
func (w wrappedCode) Unwrap() error   { return w.err }
func (w wrappedCode) ErrorCode() Code { return w.code }

// MarshalJSON returns the provided error as a json object (as a string)
// representing a codedError. Errors without a code anywhere in their chain
// are reported with an empty code, which is different from ErrUncoded.
func MarshalJSON(err error) string {
	out := codedError{
		Message: Cause(err).Error(),
		Wrapped: err.Error(),
	}
	if code := CodeOf(err); code != ErrUncoded || Is(err, ErrUncoded) {
		out.Code = code
	}

	j, jerr := json.Marshal(out)
	if jerr != nil {
		return out.Error()
	}
	return string(j)
}

