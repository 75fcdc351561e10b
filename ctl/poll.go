// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/featurebasedb/reportload/awsclient"
	"github.com/featurebasedb/reportload/config"
	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
	"github.com/featurebasedb/reportload/queue"
	"github.com/featurebasedb/reportload/storage"
)

// PollCommand receives ingest jobs from a queue and runs each one.
type PollCommand struct {
	*CmdIO

	Config *config.Config

	// Once stops after the first receive which returns no jobs.
	Once bool

	// Clients are built from Config.AWS on first use when nil.
	Clients *awsclient.Clients

	// Processed counts jobs which were ingested and acknowledged; Failed
	// counts jobs left on the queue.
	Processed int
	Failed    int
}

// JobStatus is sent to the notify queue after each job.
type JobStatus struct {
	MessageID string          `json:"message_id"`
	Status    string          `json:"status"`
	Result    IngestResult    `json:"result"`
	Error     json.RawMessage `json:"error,omitempty"`
}

// NewPollCommand returns a new instance of PollCommand.
func NewPollCommand(stdin io.Reader, stdout, stderr io.Writer) *PollCommand {
	return &PollCommand{
		CmdIO:  NewCmdIO(stdin, stdout, stderr),
		Config: config.NewConfig(),
	}
}

// Run polls until ctx is cancelled. A failed job is logged and its message
// left for redelivery.
func (cmd *PollCommand) Run(ctx context.Context) error {
	log := cmd.Logger()
	if err := cmd.Config.Validate(); err != nil {
		return err
	}
	if cmd.Clients == nil {
		clients, err := awsclient.New(cmd.Config.AWS, log)
		if err != nil {
			return err
		}
		cmd.Clients = clients
	}
	q, err := cmd.queue(ctx)
	if err != nil {
		return err
	}
	log.Infof("polling %s", q.URL)

	for {
		jobs, err := q.Receive(ctx, cmd.Config.Queue.MaxMessages)
		if err != nil {
			if ctx.Err() != nil {
				log.Infof("stopped polling %s", q.URL)
				return nil
			}
			return err
		}
		if len(jobs) == 0 && cmd.Once {
			return nil
		}
		for _, job := range jobs {
			if ctx.Err() != nil {
				return nil
			}
			cmd.handle(ctx, log, q, job)
		}
	}
}

func (cmd *PollCommand) queue(ctx context.Context) (*queue.Queue, error) {
	cfg := cmd.Config.Queue
	var q *queue.Queue
	switch {
	case cfg.URL != "":
		q = queue.New(cmd.Clients.SQS, cfg.URL)
	case cfg.Name != "":
		var err error
		if q, err = queue.Lookup(ctx, cmd.Clients.SQS, cfg.Name); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New(errors.ErrInvalidConfig, "polling needs queue.url or queue.name")
	}
	q.WaitTime = cfg.WaitTime
	q.VisibilityTimeout = cfg.VisibilityTimeout
	q.Log = cmd.Logger()
	return q, nil
}

func (cmd *PollCommand) handle(ctx context.Context, log logger.Logger, q *queue.Queue, job queue.Job) {
	ingest := &IngestCommand{
		CmdIO:        cmd.CmdIO,
		Config:       cmd.Config,
		Path:         job.URL(),
		Table:        job.Table,
		Schema:       job.Schema,
		InvocationID: job.MessageID,
		Clients:      cmd.Clients,
	}
	res, err := ingest.Ingest(ctx)
	status := JobStatus{MessageID: job.MessageID, Status: "done", Result: res}
	if err != nil {
		cmd.Failed++
		log.Errorf("job %s (%s) failed: %v", job.MessageID, job.URL(), err)
		status.Status = "failed"
		status.Error = json.RawMessage(errors.MarshalJSON(err))
	} else if err := q.Ack(ctx, job); err != nil {
		cmd.Failed++
		log.Errorf("acknowledging job %s: %v", job.MessageID, err)
		status.Status = "unacknowledged"
	} else {
		cmd.Processed++
		log.Infof("job %s done: %d rows, %d written", job.MessageID, res.Rows, res.Written)
	}

	if cmd.Config.Queue.StatusURL != "" {
		if err := cmd.writeStatus(ctx, status); err != nil {
			log.Warnf("writing status of job %s: %v", job.MessageID, err)
		}
	}
	if cmd.Config.Queue.NotifyURL == "" {
		return
	}
	if _, err := queue.Notify(ctx, cmd.Clients.SQS, cmd.Config.Queue.NotifyURL, status); err != nil {
		log.Warnf("notifying about job %s: %v", job.MessageID, err)
	}
}

// StatusName is where the status of the job with messageID is written
// under statusURL.
func StatusName(statusURL, messageID string) string {
	return strings.TrimSuffix(statusURL, "/") + "/" + messageID + ".json"
}

func (cmd *PollCommand) writeStatus(ctx context.Context, status JobStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return errors.Wrap(err, "encoding job status")
	}
	return storage.WriteFileOrURL(ctx, StatusName(cmd.Config.Queue.StatusURL, status.MessageID), body, cmd.Clients.S3)
}
