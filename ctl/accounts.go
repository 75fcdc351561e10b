// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"context"
	"encoding/json"
	"io"

	"github.com/featurebasedb/reportload/awsclient"
	"github.com/featurebasedb/reportload/config"
	"github.com/featurebasedb/reportload/dynamo"
	"github.com/featurebasedb/reportload/errors"
)

// AccountsCommand lists the account ids of the accounts table, split by
// their is_af flag.
type AccountsCommand struct {
	*CmdIO

	Config *config.Config

	// Clients are built from Config.AWS when nil.
	Clients *awsclient.Clients
}

// AccountList is what AccountsCommand prints.
type AccountList struct {
	Table string  `json:"table"`
	AF    []int64 `json:"af"`
	NotAF []int64 `json:"not_af"`
}

// NewAccountsCommand returns a new instance of AccountsCommand.
func NewAccountsCommand(stdin io.Reader, stdout, stderr io.Writer) *AccountsCommand {
	return &AccountsCommand{
		CmdIO:  NewCmdIO(stdin, stdout, stderr),
		Config: config.NewConfig(),
	}
}

// Run scans the accounts table and prints the ids as JSON.
func (cmd *AccountsCommand) Run(ctx context.Context) error {
	table := cmd.Config.Dynamo.AccountsTable
	if table == "" {
		return errors.New(errors.ErrInvalidConfig, "listing accounts needs dynamo.accounts-table")
	}
	if cmd.Clients == nil {
		clients, err := awsclient.New(cmd.Config.AWS, cmd.Logger())
		if err != nil {
			return err
		}
		cmd.Clients = clients
	}
	store := dynamo.NewStore(cmd.Clients.DynamoDB)
	store.Log = cmd.Logger()
	accts, err := store.Accounts(ctx, table)
	if err != nil {
		return err
	}
	list := AccountList{Table: table, AF: accts.AF, NotAF: accts.NotAF}
	if list.AF == nil {
		list.AF = []int64{}
	}
	if list.NotAF == nil {
		list.NotAF = []int64{}
	}
	enc := json.NewEncoder(cmd.Stdout)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(list), "writing accounts")
}
