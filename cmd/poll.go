// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/featurebasedb/reportload/config"
	"github.com/featurebasedb/reportload/ctl"
)

func newPollCommand(cio *ctl.CmdIO, cfg *config.Config) *cobra.Command {
	poll := &ctl.PollCommand{CmdIO: cio, Config: cfg}
	pollCmd := &cobra.Command{
		Use:   "poll",
		Short: "Ingest reports named by queued jobs.",
		Long: `Poll long-polls queue.url (or queue.name) for jobs of the form

	{"bucket": "...", "key": "...", "table": "...", "schema": "..."}

and ingests each one as the ingest command would. A job is deleted from
the queue once it succeeds; a failed job is logged and left for
redelivery. With queue.notify-url a status message is sent for every job,
and with queue.status-url the same status is written as <message id>.json.
`,
		RunE: usageErrorWrapper(poll),
	}
	pollCmd.Flags().BoolVar(&poll.Once, "once", false, "Stop when the queue is empty.")
	return pollCmd
}
