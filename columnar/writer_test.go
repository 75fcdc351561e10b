// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package columnar_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/featurebasedb/reportload/columnar"
	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/schema"
	"github.com/featurebasedb/reportload/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var p = value.Ptr

func reportSchema(t *testing.T) schema.Schema {
	t.Helper()
	s, err := schema.Parse(`message report {
		required int64 clicks;
		required float ctr;
		required binary campaign (UTF8);
		required int32 impressions;
	}`)
	require.NoError(t, err)
	return s
}

func TestWriteBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.parquet")
	w, err := columnar.Create(reportSchema(t), path)
	require.NoError(t, err)

	err = w.WriteBatch([]columnar.Column{
		{p("500"), p(" --")},
		{p("< 10%"), p("12%")},
		{p("brand"), nil},
		{p("3"), p("")},
	}, 2)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, int64(2), w.Rows())

	info, err := columnar.OpenInfo(context.Background(), path, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.NumRows)
	assert.Equal(t, 1, info.RowGroups)
	require.Len(t, info.Fields, 4)
	assert.Equal(t, "clicks", info.Fields[0].Name)
	assert.Equal(t, "int64", info.Fields[0].Type)
	assert.Equal(t, "float32", info.Fields[1].Type)
	assert.Equal(t, "utf8", info.Fields[2].Type)
	assert.True(t, info.Fields[3].Nullable)

	require.Len(t, info.Sample, 2)
	assert.Equal(t, int64(500), info.Sample[0][0])
	assert.Equal(t, int64(0), info.Sample[1][0])
	assert.InDelta(t, 0.05, info.Sample[0][1], 1e-6)
	assert.InDelta(t, 0.12, info.Sample[1][1], 1e-6)
	assert.Equal(t, "brand", info.Sample[0][2])
	assert.Equal(t, "", info.Sample[1][2])
	assert.Equal(t, int32(3), info.Sample[0][3])
	assert.Equal(t, int32(0), info.Sample[1][3])
}

func TestWriteBatchRowGroups(t *testing.T) {
	sch := schema.MustNew("counts", schema.Column{Name: "n", Type: schema.Int64})
	var buf bytes.Buffer
	w, err := columnar.NewWriter(sch, &buf)
	require.NoError(t, err)

	for batch := 0; batch < 3; batch++ {
		col := make(columnar.Column, 100)
		for i := range col {
			col[i] = p("7")
		}
		require.NoError(t, w.WriteBatch([]columnar.Column{col}, len(col)))
	}
	require.NoError(t, w.Close())

	info, err := columnar.ReadInfo(context.Background(), bytes.NewReader(buf.Bytes()), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(300), info.NumRows)
	assert.Equal(t, 3, info.RowGroups)
	assert.Len(t, info.Sample, 5)
	for _, row := range info.Sample {
		assert.Equal(t, []interface{}{int64(7)}, row)
	}
}

func TestWriteBatchArity(t *testing.T) {
	sch := schema.MustNew("abc",
		schema.Column{Name: "a", Type: schema.Int64},
		schema.Column{Name: "b", Type: schema.Text},
		schema.Column{Name: "c", Type: schema.Float},
	)
	w, err := columnar.NewWriter(sch, &bytes.Buffer{})
	require.NoError(t, err)
	defer w.Abort()

	err = w.WriteBatch([]columnar.Column{{p("1")}, {p("x")}}, 1)
	require.Error(t, err)
	var arity *columnar.SchemaArityError
	require.True(t, errors.As(err, &arity))
	assert.Equal(t, 3, arity.Expected)
	assert.Equal(t, 2, arity.Got)
	assert.True(t, errors.Is(err, errors.ErrSchemaArity))

	err = w.WriteBatch([]columnar.Column{{p("1")}, {p("x"), p("y")}, {p("1.5")}}, 1)
	require.True(t, errors.As(err, &arity))
	assert.Equal(t, "b", arity.Column)
	assert.Equal(t, int64(0), w.Rows())
}

func TestWriteBatchParseError(t *testing.T) {
	sch := schema.MustNew("s",
		schema.Column{Name: "name", Type: schema.Text},
		schema.Column{Name: "clicks", Type: schema.Int32},
	)
	var buf bytes.Buffer
	w, err := columnar.NewWriter(sch, &buf)
	require.NoError(t, err)

	err = w.WriteBatch([]columnar.Column{{p("a"), p("b")}, {p("1"), p("1,000")}}, 2)
	require.Error(t, err)
	var perr *value.ValueParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "1,000", perr.Raw)
	assert.True(t, errors.Is(err, errors.ErrValueParse))

	// the failed batch left nothing behind
	require.NoError(t, w.WriteBatch([]columnar.Column{{p("c")}, {p("2")}}, 1))
	require.NoError(t, w.Close())

	info, err := columnar.ReadInfo(context.Background(), bytes.NewReader(buf.Bytes()), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.NumRows)
	assert.Equal(t, [][]interface{}{{"c", int32(2)}}, info.Sample)
}

func TestWriterAbort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted.parquet")
	w, err := columnar.Create(reportSchema(t), path)
	require.NoError(t, err)
	assert.Equal(t, path, w.Path())
	w.Abort()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Error(t, w.WriteBatch(nil, 0))
}

func TestInfoPrint(t *testing.T) {
	info := columnar.Info{
		Fields:    []columnar.Field{{Name: "clicks", Type: "int64", Nullable: true}},
		NumRows:   1,
		RowGroups: 1,
		Sample:    [][]interface{}{{int64(4)}},
	}
	var buf bytes.Buffer
	info.Print(&buf, "x.parquet")
	assert.Contains(t, buf.String(), "Name:x.parquet")
	assert.Contains(t, buf.String(), "0. Name: clicks")
	assert.Contains(t, buf.String(), "Number of rows:1")
	assert.Contains(t, buf.String(), "clicks\t\n4\t\n")
}
