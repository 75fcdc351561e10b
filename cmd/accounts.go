// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/featurebasedb/reportload/config"
	"github.com/featurebasedb/reportload/ctl"
)

func newAccountsCommand(cio *ctl.CmdIO, cfg *config.Config) *cobra.Command {
	accts := &ctl.AccountsCommand{CmdIO: cio, Config: cfg}
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the account ids of dynamo.accounts-table.",
		Long: `accounts scans dynamo.accounts-table and prints its account ids as JSON,
split into "af" and "not_af" by each account's is_af attribute.
`,
		RunE: usageErrorWrapper(accts),
	}
}
