// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/featurebasedb/reportload/config"
	"github.com/featurebasedb/reportload/ctl"
)

func newParquetInfoCommand(cio *ctl.CmdIO, cfg *config.Config) *cobra.Command {
	c := &ctl.ParquetInfoCommand{CmdIO: cio, Config: cfg}
	cmd := &cobra.Command{
		Use:   "parquet-info PATH|URL",
		Short: "Display info about a parquet file.",
		Long: `
Displays schema and sample data from the specified file
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("parquet file path required")
			} else if len(args) > 1 {
				return fmt.Errorf("too many command line arguments")
			}
			c.Path = args[0]
			return nil
		},
		RunE: usageErrorWrapper(c),
	}
	cmd.Flags().IntVar(&c.Rows, "rows", 10, "Number of sample rows.")
	return cmd
}
