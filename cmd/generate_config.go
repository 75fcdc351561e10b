// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/featurebasedb/reportload/ctl"
)

func newGenerateConfigCommand(cio *ctl.CmdIO) *cobra.Command {
	generateConf := &ctl.GenerateConfigCommand{CmdIO: cio}
	confCmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Print the default configuration.",
		Long: `generate-config prints the default configuration to stdout
`,
		RunE: usageErrorWrapper(generateConf),
	}

	return confCmd
}
