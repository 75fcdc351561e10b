// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package pipeline

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricRowsRead    = "rows_read_total"
	MetricRowsSkipped = "rows_skipped_total"
	MetricRowGroups   = "row_groups_written_total"
)

var CounterRowsRead = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "reportload",
		Name:      MetricRowsRead,
		Help:      "Report rows read.",
	},
)

var CounterRowsSkipped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "reportload",
		Name:      MetricRowsSkipped,
		Help:      "Rows left out of the key-value store.",
	},
	[]string{
		"reason",
	},
)

var CounterRowGroups = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "reportload",
		Name:      MetricRowGroups,
		Help:      "Parquet row groups written.",
	},
)

func init() {
	prometheus.MustRegister(CounterRowsRead)
	prometheus.MustRegister(CounterRowsSkipped)
	prometheus.MustRegister(CounterRowGroups)
}
