// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"bytes"
	"context"
	"io"

	"github.com/featurebasedb/reportload/awsclient"
	"github.com/featurebasedb/reportload/columnar"
	"github.com/featurebasedb/reportload/config"
	"github.com/featurebasedb/reportload/storage"
)

// ParquetInfoCommand represents a command for displaying info about a parquet file
type ParquetInfoCommand struct {
	*CmdIO

	Config *config.Config

	// Filepath or s3:// URL of the parquet file.
	Path string

	// Rows is the number of sample rows printed.
	Rows int

	// Clients are built from Config.AWS for s3:// paths when nil.
	Clients *awsclient.Clients
}

// NewParquetInfoCommand returns a new instance of ParquetInfoCommand.
func NewParquetInfoCommand(stdin io.Reader, stdout, stderr io.Writer) *ParquetInfoCommand {
	return &ParquetInfoCommand{
		CmdIO:  NewCmdIO(stdin, stdout, stderr),
		Config: config.NewConfig(),
		Rows:   10,
	}
}

// Run displays schema and samples data from a parquet file
func (cmd *ParquetInfoCommand) Run(ctx context.Context) error {
	var info columnar.Info
	_, _, isURL, err := storage.ParseURL(cmd.Path)
	if err != nil {
		return err
	}
	if isURL {
		if cmd.Clients == nil {
			if cmd.Clients, err = awsclient.New(cmd.Config.AWS, cmd.Logger()); err != nil {
				return err
			}
		}
		// the parquet reader needs to seek, so the object is read whole
		data, err := storage.ReadFileOrURL(ctx, cmd.Path, cmd.Clients.S3)
		if err != nil {
			return err
		}
		info, err = columnar.ReadInfo(ctx, bytes.NewReader(data), cmd.Rows)
		if err != nil {
			return err
		}
	} else {
		info, err = columnar.OpenInfo(ctx, cmd.Path, cmd.Rows)
		if err != nil {
			return err
		}
	}
	info.Print(cmd.Stdout, cmd.Path)
	return nil
}
