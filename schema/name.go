// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// NormalizeName turns a report header cell such as "Avg. CPC" or
// "Conv. rate (%)" into a column name ("avg_cpc", "conv_rate"). Runs of
// anything that is not a letter or digit collapse into one underscore.
func NormalizeName(head string) string {
	words := strings.FieldsFunc(lower.String(head), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, "_")
}
