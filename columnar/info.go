// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package columnar

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"

	"github.com/featurebasedb/reportload/errors"
)

// Field describes one column of a Parquet file as arrow sees it.
type Field struct {
	Name     string
	Type     string
	Nullable bool
}

// Info is the schema, size and a sample of a Parquet file.
type Info struct {
	Fields    []Field
	NumRows   int64
	RowGroups int
	// Sample holds up to the requested number of leading rows, one
	// []interface{} per row in field order. Null cells are nil.
	Sample [][]interface{}
}

// OpenInfo is ReadInfo on a local file.
func OpenInfo(ctx context.Context, path string, sampleRows int) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return ReadInfo(ctx, f, sampleRows)
}

// ReadInfo reads the whole file into an arrow table and reports its schema,
// row count and up to sampleRows leading rows.
func ReadInfo(ctx context.Context, r parquet.ReaderAtSeeker, sampleRows int) (Info, error) {
	pf, err := file.NewParquetReader(r)
	if err != nil {
		return Info{}, errors.Wrap(err, "opening parquet reader")
	}
	defer pf.Close()

	mem := memory.NewGoAllocator()
	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return Info{}, errors.Wrap(err, "opening arrow reader")
	}
	table, err := reader.ReadTable(ctx)
	if err != nil {
		return Info{}, errors.Wrap(err, "reading table")
	}
	defer table.Release()

	info := Info{
		NumRows:   table.NumRows(),
		RowGroups: pf.NumRowGroups(),
	}
	fields := table.Schema().Fields()
	for _, field := range fields {
		info.Fields = append(info.Fields, Field{
			Name:     field.Name,
			Type:     field.Type.String(),
			Nullable: field.Nullable,
		})
	}

	n := int(info.NumRows)
	if n > sampleRows {
		n = sampleRows
	}
	info.Sample = make([][]interface{}, n)
	for i := range info.Sample {
		info.Sample[i] = make([]interface{}, len(fields))
	}
	for j := range fields {
		row := 0
		for _, chunk := range table.Column(j).Data().Chunks() {
			for k := 0; k < chunk.Len() && row < n; k++ {
				info.Sample[row][j] = cell(chunk, k)
				row++
			}
			if row >= n {
				break
			}
		}
	}
	return info, nil
}

func cell(arr arrow.Array, i int) interface{} {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	}
	return fmt.Sprintf("<%s>", arr.DataType())
}

// Print writes info in the tab separated layout of the parquet-info
// command.
func (info Info) Print(w io.Writer, name string) {
	fmt.Fprintf(w, "\n\nName:%v\n", name)
	for i, field := range info.Fields {
		fmt.Fprintf(w, "%v. Name: %v\n", i, field.Name)
		fmt.Fprintf(w, "%v. Type: %v\n", i, field.Type)
		fmt.Fprintf(w, "%v. Nullable: %v\n\n", i, field.Nullable)
	}
	fmt.Fprintf(w, "Number of rows:%v\n", info.NumRows)
	fmt.Fprintf(w, "Row groups:%v\n", info.RowGroups)
	fmt.Fprintln(w, "Sample:")
	for _, field := range info.Fields {
		fmt.Fprintf(w, "%v\t", field.Name)
	}
	fmt.Fprintln(w)
	for _, row := range info.Sample {
		for _, v := range row {
			fmt.Fprintf(w, "%v\t", v)
		}
		fmt.Fprintln(w)
	}
}
