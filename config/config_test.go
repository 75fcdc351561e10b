// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/featurebasedb/reportload/config"
	"github.com/featurebasedb/reportload/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigValid(t *testing.T) {
	c := config.NewConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, 25, c.Batch.Capacity)
	comma, err := c.Comma()
	require.NoError(t, err)
	assert.Equal(t, ',', comma)
}

func TestValidate(t *testing.T) {
	for name, mod := range map[string]func(c *config.Config){
		"capacity":    func(c *config.Config) { c.Batch.Capacity = 26 },
		"delimiter":   func(c *config.Config) { c.Parquet.Delimiter = ";;" },
		"log level":   func(c *config.Config) { c.LogLevel = "loud" },
		"wait time":   func(c *config.Config) { c.Queue.WaitTime = 21 },
		"messages":    func(c *config.Config) { c.Queue.MaxMessages = 11 },
		"athena db":   func(c *config.Config) { c.Athena.Table = "reports" },
		"prefix":      func(c *config.Config) { c.S3.ParquetPrefix = "parquet/" },
		"aws retries": func(c *config.Config) { c.AWS.MaxRetries = -1 },
		"enrich": func(c *config.Config) {
			c.Dynamo.EnrichWebsite = true
			c.Dynamo.AccountsTable = ""
		},
	} {
		t.Run(name, func(t *testing.T) {
			c := config.NewConfig()
			mod(c)
			err := c.Validate()
			assert.True(t, errors.Is(err, errors.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestCommaTab(t *testing.T) {
	c := config.NewConfig()
	c.Parquet.Delimiter = `\t`
	comma, err := c.Comma()
	require.NoError(t, err)
	assert.Equal(t, '\t', comma)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	c := config.NewConfig()
	c.LogLevel = "warn"
	log, closer, err := c.Logger(&buf)
	require.NoError(t, err)
	log.Infof("quiet")
	log.Warnf("loud")
	require.NoError(t, closer.Close())
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")

	c.LogPath = filepath.Join(t.TempDir(), "reportload.log")
	log, closer, err = c.Logger(&buf)
	require.NoError(t, err)
	log.Warnf("to file")
	require.NoError(t, closer.Close())
	data, err := os.ReadFile(c.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
