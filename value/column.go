// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package value

import (
	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/schema"
)

// NormalizeColumn normalizes every cell of one column batch. It stops at the
// first bad cell and reports its row.
func NormalizeColumn(cells []*string, t schema.Type) ([]Value, error) {
	out := make([]Value, len(cells))
	for i, c := range cells {
		v, err := Normalize(c, t)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		out[i] = v
	}
	return out, nil
}
