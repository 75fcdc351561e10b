// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"

	"github.com/featurebasedb/reportload/analytics"
	"github.com/featurebasedb/reportload/awsclient"
	"github.com/featurebasedb/reportload/batch"
	"github.com/featurebasedb/reportload/columnar"
	"github.com/featurebasedb/reportload/config"
	"github.com/featurebasedb/reportload/dynamo"
	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
	"github.com/featurebasedb/reportload/pipeline"
	"github.com/featurebasedb/reportload/report"
	"github.com/featurebasedb/reportload/schema"
	"github.com/featurebasedb/reportload/storage"
)

// IngestCommand reads one report, writes its Parquet artifact and persists
// its rows.
type IngestCommand struct {
	*CmdIO

	Config *config.Config

	// Path is a local path or s3:// URL. Key, used when Path is empty, is
	// resolved in the configured bucket.
	Path string
	Key  string

	// Table and Schema override the configuration for this report.
	Table  string
	Schema string

	// Partition names the Athena partition the artifact belongs to.
	Partition map[string]string

	// InvocationID tags every log line of one run. Generated when empty.
	InvocationID string

	// Clients are built from Config.AWS on first use when nil.
	Clients *awsclient.Clients
}

// IngestResult describes one finished ingest.
type IngestResult struct {
	InvocationID string `json:"invocation_id"`
	Source       string `json:"source"`

	// Parquet is the local artifact; Uploaded its s3:// URL when uploaded.
	Parquet  string `json:"parquet,omitempty"`
	Uploaded string `json:"uploaded,omitempty"`
	QueryID  string `json:"query_id,omitempty"`

	Rows     int `json:"rows"`
	Columns  int `json:"columns"`
	Skipped  int `json:"skipped"`
	Written  int `json:"written"`
	Rejected int `json:"rejected"`
}

// NewIngestCommand returns a new instance of IngestCommand.
func NewIngestCommand(stdin io.Reader, stdout, stderr io.Writer) *IngestCommand {
	return &IngestCommand{
		CmdIO:  NewCmdIO(stdin, stdout, stderr),
		Config: config.NewConfig(),
	}
}

// Run ingests the report and prints a summary line.
func (cmd *IngestCommand) Run(ctx context.Context) error {
	res, err := cmd.Ingest(ctx)
	if res.Source != "" {
		fmt.Fprintf(cmd.Stdout, "%s: %d rows, %d columns, %d written, %d rejected, %d skipped, parquet %s\n",
			res.Source, res.Rows, res.Columns, res.Written, res.Rejected, res.Skipped, res.artifact())
	}
	return err
}

func (r IngestResult) artifact() string {
	if r.Uploaded != "" {
		return r.Uploaded
	}
	if r.Parquet != "" {
		return r.Parquet
	}
	return "none"
}

// settings are the per-report values after the report config document and
// the command's overrides are applied.
type settings struct {
	schema   schema.Schema
	comma    rune
	table    string
	keyField string
}

// Ingest runs the report through the pipeline. The Parquet artifact is
// uploaded whenever its row group was written, even if persisting rows then
// fails. It stays on disk only when parquet.dir is set; a temporary
// directory is removed before Ingest returns.
func (cmd *IngestCommand) Ingest(ctx context.Context) (res IngestResult, err error) {
	cfg := cmd.Config
	if err := cfg.Validate(); err != nil {
		return res, err
	}
	if cmd.InvocationID == "" {
		cmd.InvocationID = uuid.New().String()
	}
	res.InvocationID = cmd.InvocationID
	log := cmd.Logger().WithPrefix(fmt.Sprintf("[%s] ", cmd.InvocationID))

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Timeout))
		defer cancel()
	}

	res.Source, err = cmd.source()
	if err != nil {
		return res, err
	}
	log.Infof("ingesting %s", res.Source)

	set, err := cmd.settings(ctx, log)
	if err != nil {
		return res, err
	}

	s3client, err := cmd.s3(res.Source, log)
	if err != nil {
		return res, err
	}
	body, err := storage.OpenFileOrURL(ctx, res.Source, s3client)
	if err != nil {
		return res, err
	}
	defer body.Close()
	rr := pipeline.NewReader(body, set.comma)
	rr.Name = res.Source
	rr.Log = log

	sch, err := pipeline.ResolveSchema(set.schema, rr)
	if err != nil {
		return res, err
	}

	dir := cfg.Parquet.Dir
	if dir == "" {
		if dir, err = os.MkdirTemp("", "reportload-"); err != nil {
			return res, errors.Wrap(err, "creating artifact directory")
		}
		defer func() {
			if rerr := os.RemoveAll(dir); rerr != nil {
				log.Warnf("removing %s: %v", dir, rerr)
			}
			if res.Parquet != "" && res.Uploaded == "" {
				log.Infof("discarded %s; set parquet.dir or s3.parquet-prefix to keep it", res.Parquet)
			}
			res.Parquet = ""
		}()
	}
	name := ArtifactName(res.Source)
	w, err := columnar.Create(sch, filepath.Join(dir, name), columnar.OptWriterLogger(log))
	if err != nil {
		return res, err
	}

	d := &pipeline.Driver{
		Schema:    sch,
		Writer:    w,
		Table:     set.table,
		KeyField:  set.keyField,
		SourceKey: res.Source,
		Log:       log,
	}
	if set.table != "" {
		clients, err := cmd.clients(log)
		if err != nil {
			w.Abort()
			return res, err
		}
		store := dynamo.NewStore(clients.DynamoDB)
		store.Log = log
		if set.keyField != "" {
			store.KeyFields = []string{set.keyField}
		}
		if cfg.Dynamo.EnrichWebsite {
			d.Enricher = dynamo.NewWebsites(store, cfg.Dynamo.AccountsTable)
		}
		p, err := batch.NewPersister(store, cfg.Batch, batch.OptLogger(log))
		if err != nil {
			w.Abort()
			return res, err
		}
		d.Persister = p
	}

	out, runErr := d.RunReader(ctx, rr)
	res.Rows, res.Columns, res.Skipped = out.Rows, out.Columns, out.Skipped
	res.Written, res.Rejected = out.Batch.Written, out.Batch.RejectedItems()
	if !out.Columnar {
		w.Abort()
		return res, runErr
	}
	if err := w.Close(); err != nil {
		return res, errors.Wrap(err, "closing parquet artifact")
	}
	res.Parquet = w.Path()
	log.Infof("wrote %d rows to %s", w.Rows(), res.Parquet)

	if cfg.S3.ParquetPrefix != "" {
		if err := cmd.publish(ctx, log, &res, name); err != nil {
			if runErr != nil {
				log.Errorf("persisting rows: %v", runErr)
			}
			return res, err
		}
	}
	return res, runErr
}

// publish uploads the artifact under the partition's key prefix and, when an
// Athena table is configured, registers the partition.
func (cmd *IngestCommand) publish(ctx context.Context, log logger.Logger, res *IngestResult, name string) error {
	cfg := cmd.Config
	clients, err := cmd.clients(log)
	if err != nil {
		return err
	}
	dirKey := path.Join(cfg.S3.ParquetPrefix, PartitionPath(cmd.Partition))
	bucket := storage.NewBucket(clients.S3, cfg.S3.Bucket)
	bucket.Log = log
	key := path.Join(dirKey, name)
	if err := bucket.Upload(ctx, key, res.Parquet); err != nil {
		return err
	}
	res.Uploaded = bucket.URL(key)

	if cfg.Athena.Table == "" {
		return nil
	}
	if len(cmd.Partition) == 0 {
		return errors.New(errors.ErrInvalidConfig, "adding an athena partition needs --partition")
	}
	ac := analytics.New(clients.Athena, cfg.Athena.Database)
	ac.Workgroup = cfg.Athena.Workgroup
	ac.OutputLocation = cfg.Athena.OutputLocation
	ac.PollInterval = time.Duration(cfg.Athena.PollInterval)
	ac.Log = log
	query := analytics.AddPartitionQuery(cfg.Athena.Table, cmd.Partition, bucket.URL(dirKey)+"/")
	if res.QueryID, err = ac.Submit(ctx, query); err != nil {
		return err
	}
	return ac.Wait(ctx, res.QueryID)
}

func (cmd *IngestCommand) source() (string, error) {
	switch {
	case cmd.Path != "":
		return cmd.Path, nil
	case cmd.Key != "":
		if cmd.Config.S3.Bucket == "" {
			return "", errors.New(errors.ErrInvalidConfig, "--key needs s3.bucket")
		}
		return storage.NewBucket(nil, cmd.Config.S3.Bucket).URL(cmd.Key), nil
	}
	return "", errors.New(errors.ErrInvalidConfig, "no report given")
}

func (cmd *IngestCommand) settings(ctx context.Context, log logger.Logger) (settings, error) {
	cfg := cmd.Config
	set := settings{
		table:    cfg.Dynamo.Table,
		keyField: cfg.Dynamo.KeyField,
	}
	var err error
	if set.comma, err = cfg.Comma(); err != nil {
		return set, err
	}
	decl := cfg.Parquet.Schema

	if cfg.Parquet.ReportConfig != "" {
		s3client, err := cmd.s3(cfg.Parquet.ReportConfig, log)
		if err != nil {
			return set, err
		}
		rc, err := report.LoadReportConfig(ctx, cfg.Parquet.ReportConfig, s3client)
		if err != nil {
			return set, err
		}
		if rc.Schema != "" || len(rc.Columns) > 0 {
			if set.schema, err = rc.ColumnSchema(); err != nil {
				return set, err
			}
			decl = ""
		}
		if rc.Delimiter != "" {
			if set.comma, err = rc.Comma(); err != nil {
				return set, err
			}
		}
		if rc.Table != "" {
			set.table = rc.Table
		}
		if rc.KeyField != "" {
			set.keyField = rc.KeyField
		}
	}

	if cmd.Schema != "" {
		decl = cmd.Schema
	}
	if decl != "" {
		if set.schema, err = schema.Parse(decl); err != nil {
			return set, err
		}
	}
	if cmd.Table != "" {
		set.table = cmd.Table
	}
	set.keyField = schema.NormalizeName(set.keyField)
	return set, nil
}

func (cmd *IngestCommand) clients(log logger.Logger) (*awsclient.Clients, error) {
	if cmd.Clients == nil {
		clients, err := awsclient.New(cmd.Config.AWS, log)
		if err != nil {
			return nil, err
		}
		cmd.Clients = clients
	}
	return cmd.Clients, nil
}

// s3 returns the S3 client name needs: nil for local paths.
func (cmd *IngestCommand) s3(name string, log logger.Logger) (s3iface.S3API, error) {
	if _, _, ok, _ := storage.ParseURL(name); !ok {
		return nil, nil
	}
	clients, err := cmd.clients(log)
	if err != nil {
		return nil, errors.Wrapf(err, "building AWS clients for %s", name)
	}
	return clients.S3, nil
}

// ArtifactName derives the Parquet file name from a report's path.
func ArtifactName(source string) string {
	name := path.Base(source)
	for _, ext := range []string{".gz", ".csv", ".tsv", ".txt"} {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" || name == "." || name == "/" {
		name = "report"
	}
	return name + ".parquet"
}

// PartitionPath renders a partition as sorted "key=value" path segments.
func PartitionPath(partition map[string]string) string {
	keys := make([]string, 0, len(partition))
	for k := range partition {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	segs := make([]string, len(keys))
	for i, k := range keys {
		segs[i] = k + "=" + partition[k]
	}
	return path.Join(segs...)
}
