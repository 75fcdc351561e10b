// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/featurebasedb/reportload/config"
	"github.com/featurebasedb/reportload/ctl"
	"github.com/featurebasedb/reportload/errors"
)

func newIngestCommand(cio *ctl.CmdIO, cfg *config.Config) *cobra.Command {
	ingest := &ctl.IngestCommand{CmdIO: cio, Config: cfg}
	var partition []string
	ingestCmd := &cobra.Command{
		Use:   "ingest [PATH|URL]",
		Short: "Ingest one report.",
		Long: `Ingest reads one report from a local path, an s3:// URL, or --key in
s3.bucket. Reports ending in .gz are decompressed.

The columns are written as one Parquet row group under parquet.dir and,
with s3.parquet-prefix, uploaded there. With dynamo.table every row is
stored as an item keyed by dynamo.key-field. With athena.table the upload
is added to the table as the partition named by --partition.

The Parquet file and the DynamoDB items are written independently: a
failure storing items does not remove the Parquet file.
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return errors.Errorf("too many command line arguments")
			}
			if len(args) == 1 {
				ingest.Path = args[0]
			}
			var err error
			ingest.Partition, err = parsePartition(partition)
			return err
		},
		RunE: usageErrorWrapper(ingest),
	}

	flags := ingestCmd.Flags()
	flags.StringVar(&ingest.Key, "key", "", "Report key in s3.bucket, used when no path is given.")
	flags.StringVar(&ingest.Table, "table", "", "DynamoDB table for this report, overriding dynamo.table.")
	flags.StringVar(&ingest.Schema, "schema", "", "Schema declaration for this report, overriding parquet.schema.")
	flags.StringSliceVar(&partition, "partition", nil, "Partition of the artifact as key=value pairs, e.g. day=2019-01-01.")
	return ingestCmd
}

func parsePartition(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	partition := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" || v == "" {
			return nil, errors.Newf(errors.ErrInvalidConfig, "partition %q is not key=value", pair)
		}
		partition[k] = v
	}
	return partition, nil
}
