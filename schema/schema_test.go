// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package schema

import (
	"testing"

	"github.com/featurebasedb/reportload/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	s, err := Parse(`
message adwords_report {
  required int64 clicks;
  optional float ctr;
  required int32 impressions;
  required binary campaign (UTF8);
  required binary day;
}`)
	require.NoError(t, err)
	assert.Equal(t, "adwords_report", s.Name)
	assert.Equal(t, []Column{
		{Name: "clicks", Type: Int64},
		{Name: "ctr", Type: Float},
		{Name: "impressions", Type: Int32},
		{Name: "campaign", Type: Text},
		{Name: "day", Type: Text},
	}, s.Columns)
	assert.Equal(t, 2, s.Index("impressions"))
	assert.Equal(t, -1, s.Index("cost"))

	again, err := Parse(s.String())
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestParseErrors(t *testing.T) {
	for name, decl := range map[string]string{
		"no message":   "schema { required int64 a; }",
		"repeated":     "message m { repeated int64 a; }",
		"group":        "message m { required group g { required int64 a; } }",
		"double":       "message m { required double a; }",
		"unterminated": "message m { required int64 a;",
		"no semicolon": "message m { required int64 a }",
		"duplicate":    "message m { required int64 a; required float a; }",
		"bad logical":  "message m { required binary a (JSON); }",
		"trailing":     "message m { required int64 a; } extra",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(decl)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfig), "%v", err)
		})
	}
}

func TestParseHeader(t *testing.T) {
	s, err := ParseHeader("", []string{"clicks__Int64", " ctr__Float", "campaign", "imps__int32", "name__String"})
	require.NoError(t, err)
	assert.Equal(t, "schema", s.Name)
	assert.Equal(t, []string{"clicks", "ctr", "campaign", "imps", "name"}, s.Names())
	assert.Equal(t, []Column{
		{Name: "clicks", Type: Int64},
		{Name: "ctr", Type: Float},
		{Name: "campaign", Type: Text},
		{Name: "imps", Type: Int32},
		{Name: "name", Type: Text},
	}, s.Columns)

	_, err = ParseHeader("", []string{"clicks__Decimal"})
	assert.Error(t, err)
	_, err = ParseHeader("", []string{"__Int64"})
	assert.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	for in, exp := range map[string]string{
		"Clicks":                "clicks",
		"Avg. CPC":              "avg_cpc",
		"Conv. rate (%)":        "conv_rate",
		"Cost / conv.":          "cost_conv",
		"Search Lost IS (rank)": "search_lost_is_rank",
		"{Budget}$+?":           "budget",
		"ad_group_id":           "ad_group_id",
		"Day":                   "day",
	} {
		assert.Equal(t, exp, NormalizeName(in), in)
	}
}
