// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package value

import (
	"fmt"
	"math"
	"testing"

	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var numeric = []schema.Type{schema.Int32, schema.Int64, schema.Float}

func TestNormalizeSentinels(t *testing.T) {
	for _, typ := range numeric {
		for _, raw := range []*string{nil, Ptr(""), Ptr(Missing)} {
			v, err := Normalize(raw, typ)
			require.NoError(t, err)
			assert.Equal(t, Zero(typ), v, "%s %v", typ, raw)
		}
	}

	v, err := Normalize(nil, schema.Text)
	require.NoError(t, err)
	assert.Equal(t, TextValue(""), v)

	// text columns keep sentinels as they are
	v, err = Normalize(Ptr(Missing), schema.Text)
	require.NoError(t, err)
	assert.Equal(t, " --", v.Text)
}

func TestNormalizePercent(t *testing.T) {
	tests := []struct {
		raw string
		exp float32
	}{
		{raw: "< 10%", exp: 0.05},
		{raw: "> 90%", exp: 0.95},
		{raw: "55%", exp: 0.55},
		{raw: "12%", exp: 0.12},
		{raw: "100%", exp: 1},
		{raw: "0.5%", exp: 0.005},
		{raw: " 7 %", exp: 0.07},
	}
	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			v, err := Normalize(Ptr(test.raw), schema.Float)
			require.NoError(t, err)
			assert.Equal(t, schema.Float, v.Type)
			assert.InDelta(t, test.exp, v.Float, 1e-7)
		})
	}

	_, err := Normalize(Ptr("< 5%"), schema.Float)
	assert.True(t, errors.Is(err, errors.ErrValueParse))
}

func TestNormalizeNumbers(t *testing.T) {
	v, err := Normalize(Ptr(" 0042 "), schema.Int64)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64)

	v, err = Normalize(Ptr("-2147483648"), schema.Int32)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), v.Int32)

	v, err = Normalize(Ptr("3.25"), schema.Float)
	require.NoError(t, err)
	assert.Equal(t, float32(3.25), v.Float)

	for _, bad := range []struct {
		raw string
		typ schema.Type
	}{
		{raw: "abc", typ: schema.Int32},
		{raw: "2147483648", typ: schema.Int32},
		{raw: "1,234", typ: schema.Int64},
		{raw: "1.5", typ: schema.Int64},
		{raw: "n/a", typ: schema.Float},
	} {
		_, err := Normalize(Ptr(bad.raw), bad.typ)
		require.Error(t, err, bad.raw)
		var vpe *ValueParseError
		require.True(t, errors.As(err, &vpe), bad.raw)
		assert.Equal(t, bad.raw, vpe.Raw)
		assert.Equal(t, bad.typ, vpe.Type)
		assert.True(t, errors.Is(err, errors.ErrValueParse))
	}
}

func TestIntegerRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 500, 1234567, math.MaxInt32, math.MinInt32} {
		for _, typ := range []schema.Type{schema.Int32, schema.Int64} {
			v, err := Normalize(Ptr(fmt.Sprint(n)), typ)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprint(n), v.String())
		}
	}
	v, err := Normalize(Ptr(fmt.Sprint(int64(math.MaxInt64))), schema.Int64)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v.Int64)
}

// Normalizing the text form of a normalized value gives the same value.
func TestNormalizeStable(t *testing.T) {
	raws := map[schema.Type][]string{
		schema.Int32: {"7", "-19", " 12 "},
		schema.Int64: {"9000000000", "0"},
		schema.Float: {"0.1", "1e-7", "12%", "< 10%", "> 90%", "3.4028235e38"},
		schema.Text:  {"Brand - Exact", ""},
	}
	for typ, list := range raws {
		for _, raw := range list {
			first, err := Normalize(Ptr(raw), typ)
			require.NoError(t, err)
			second, err := Normalize(Ptr(first.String()), typ)
			require.NoError(t, err)
			assert.Equal(t, first, second, "%s %q", typ, raw)
		}
	}
}

func TestNormalizeColumn(t *testing.T) {
	vals, err := NormalizeColumn([]*string{Ptr("500"), Ptr(Missing), nil}, schema.Int64)
	require.NoError(t, err)
	assert.Equal(t, []Value{Int64Value(500), Int64Value(0), Int64Value(0)}, vals)

	_, err = NormalizeColumn([]*string{Ptr("1"), Ptr("x")}, schema.Int32)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
	assert.True(t, errors.Is(err, errors.ErrValueParse))
}
