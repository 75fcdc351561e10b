// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package batch

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricRecordsSubmitted = "records_submitted_total"
	MetricBatchesFlushed   = "batches_flushed_total"
	MetricItemsWritten     = "items_written_total"
	MetricItemsRetried     = "items_retried_total"
	MetricItemsRejected    = "items_rejected_total"
)

var CounterRecordsSubmitted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "reportload",
		Name:      MetricRecordsSubmitted,
		Help:      "Records accepted into a write batch.",
	},
	[]string{"table"},
)

var CounterBatchesFlushed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "reportload",
		Name:      MetricBatchesFlushed,
		Help:      "Write batches handed to the store.",
	},
	[]string{"table"},
)

var CounterItemsWritten = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "reportload",
		Name:      MetricItemsWritten,
		Help:      "Items the store confirmed as written.",
	},
	[]string{"table"},
)

var CounterItemsRetried = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "reportload",
		Name:      MetricItemsRetried,
		Help:      "Unprocessed items sent again after backoff.",
	},
	[]string{"table"},
)

var CounterItemsRejected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "reportload",
		Name:      MetricItemsRejected,
		Help:      "Items given up on after the last attempt or on cancellation.",
	},
	[]string{"table"},
)

func init() {
	prometheus.MustRegister(CounterRecordsSubmitted)
	prometheus.MustRegister(CounterBatchesFlushed)
	prometheus.MustRegister(CounterItemsWritten)
	prometheus.MustRegister(CounterItemsRetried)
	prometheus.MustRegister(CounterItemsRejected)
}
