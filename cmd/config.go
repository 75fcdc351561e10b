// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/featurebasedb/reportload/config"
	"github.com/featurebasedb/reportload/ctl"
)

func newConfigCommand(cio *ctl.CmdIO, cfg *config.Config) *cobra.Command {
	conf := &ctl.ConfigCommand{CmdIO: cio, Config: cfg}
	confCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the current configuration.",
		Long: `config prints the configuration after flags, environment and config file
are applied.
`,
		RunE: usageErrorWrapper(conf),
	}

	return confCmd
}
