// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Encode renders every field of r as a string attribute. Composite values
// (slices, maps, structs) are rendered as JSON with the double quotes
// removed, which is how existing items in the store were written.
func Encode(r Record) (Item, error) {
	fields := r.Fields()
	item := make(Item, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, &EncodingError{Reason: "empty field name"}
		}
		if _, ok := item[f.Name]; ok {
			return nil, &EncodingError{Field: f.Name, Reason: "duplicate field"}
		}
		s, err := encodeValue(f.Value)
		if err != nil {
			return nil, &EncodingError{Field: f.Name, Reason: fmt.Sprintf("cannot encode %T", f.Value), Err: err}
		}
		item[f.Name] = s
	}
	return item, nil
}

func encodeValue(v interface{}) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return stripQuotes(v), nil
	case *string:
		if v == nil {
			return "", nil
		}
		return stripQuotes(*v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return stripQuotes(string(b)), nil
}

func stripQuotes(s string) string {
	return strings.Replace(s, `"`, "", -1)
}
