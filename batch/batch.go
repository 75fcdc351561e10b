// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package batch accumulates encoded records into capacity-bounded write
// batches, one accumulator per destination table, and hands full batches to
// a Store.
//
// Every flush is a task with a collected result. Items the store reports as
// unprocessed are sent again with exponential backoff; whatever is still
// unprocessed after the last attempt is reported as a StoreRejectionError.
// Users call Submit for each record and Drain once at the end, which flushes
// the partial batches and joins every task.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/featurebasedb/reportload/errors"
	"github.com/featurebasedb/reportload/logger"
	"github.com/featurebasedb/reportload/record"
	"github.com/featurebasedb/reportload/toml"
)

// MaxCapacity is the most items a single DynamoDB BatchWriteItem request
// accepts.
const MaxCapacity = 25

// Batch defaults.
const (
	DefaultCapacity        = MaxCapacity
	DefaultMaxAttempts     = 5
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
	DefaultConcurrency     = 4
	DefaultRequestTimeout  = 30 * time.Second
)

// Store is a key-value store which accepts batched writes. Items it could
// not commit are returned as unprocessed; they were not written.
type Store interface {
	BatchWrite(ctx context.Context, table string, items []record.Item) (unprocessed []record.Item, err error)
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, table string, items []record.Item) ([]record.Item, error)

func (f StoreFunc) BatchWrite(ctx context.Context, table string, items []record.Item) ([]record.Item, error) {
	return f(ctx, table, items)
}

// Config controls batching, retry and throttling.
type Config struct {
	// Capacity is the number of records which fill a batch.
	Capacity int `toml:"capacity"`

	// MaxAttempts bounds the number of write requests made for one batch,
	// counting the first.
	MaxAttempts int `toml:"max-attempts"`

	InitialInterval toml.Duration `toml:"initial-interval"`
	MaxInterval     toml.Duration `toml:"max-interval"`

	// Concurrency is the number of flush tasks which may run at once. With
	// 1, batches are written strictly in the order they filled.
	Concurrency int `toml:"concurrency"`

	// WritesPerSecond throttles write requests across all tables. Zero is
	// unlimited.
	WritesPerSecond float64 `toml:"writes-per-second"`

	RequestTimeout toml.Duration `toml:"request-timeout"`
}

// NewConfig returns the default batch configuration.
func NewConfig() Config {
	return Config{
		Capacity:        DefaultCapacity,
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: toml.Duration(DefaultInitialInterval),
		MaxInterval:     toml.Duration(DefaultMaxInterval),
		Concurrency:     DefaultConcurrency,
		RequestTimeout:  toml.Duration(DefaultRequestTimeout),
	}
}

// withDefaults fills zero fields from NewConfig.
func (c Config) withDefaults() Config {
	def := NewConfig()
	if c.Capacity == 0 {
		c.Capacity = def.Capacity
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = def.InitialInterval
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = def.MaxInterval
	}
	if c.Concurrency == 0 {
		c.Concurrency = def.Concurrency
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	return c
}

// Validate checks c after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case c.Capacity < 1 || c.Capacity > MaxCapacity:
		return errors.Newf(errors.ErrInvalidConfig, "batch capacity %d outside 1..%d", c.Capacity, MaxCapacity)
	case c.MaxAttempts < 1:
		return errors.Newf(errors.ErrInvalidConfig, "batch max attempts %d must be at least 1", c.MaxAttempts)
	case c.InitialInterval < 0 || c.MaxInterval < c.InitialInterval:
		return errors.Newf(errors.ErrInvalidConfig, "batch backoff intervals %s..%s are invalid", c.InitialInterval, c.MaxInterval)
	case c.Concurrency < 1:
		return errors.Newf(errors.ErrInvalidConfig, "batch concurrency %d must be at least 1", c.Concurrency)
	case c.WritesPerSecond < 0:
		return errors.Newf(errors.ErrInvalidConfig, "batch writes per second %v is negative", c.WritesPerSecond)
	case c.RequestTimeout < 0:
		return errors.Newf(errors.ErrInvalidConfig, "batch request timeout %s is negative", c.RequestTimeout)
	}
	return nil
}

// StoreRejectionError holds the items a store still reported as unprocessed
// after the last attempt.
type StoreRejectionError struct {
	Table    string
	Items    []record.Item
	Attempts int
}

func (e *StoreRejectionError) Error() string {
	return fmt.Sprintf("store left %d items unprocessed in %s after %d attempts", len(e.Items), e.Table, e.Attempts)
}

func (e *StoreRejectionError) ErrorCode() errors.Code { return errors.ErrStoreRejection }

// UnknownOutcomeError holds items whose write was in flight, or waiting on a
// retry, when the context was cancelled. They may or may not be stored.
type UnknownOutcomeError struct {
	Table string
	Items []record.Item
	Err   error
}

func (e *UnknownOutcomeError) Error() string {
	return fmt.Sprintf("outcome of writing %d items to %s is unknown: %v", len(e.Items), e.Table, e.Err)
}

func (e *UnknownOutcomeError) Unwrap() error          { return e.Err }
func (e *UnknownOutcomeError) ErrorCode() errors.Code { return errors.ErrUnknownOutcome }

// RejectedBatch is a group of items which were not confirmed as written.
type RejectedBatch struct {
	Table string
	Items []record.Item
	Err   error
}

// Report summarizes everything a Persister did up to Drain.
type Report struct {
	Submitted int
	Batches   int
	Written   int
	Rejected  []RejectedBatch
}

// RejectedItems counts the items across all rejected batches.
func (r Report) RejectedItems() int {
	n := 0
	for _, rb := range r.Rejected {
		n += len(rb.Items)
	}
	return n
}

// Persister accumulates records per table and flushes full batches. Submit,
// Flush and Pending are safe for concurrent use; Drain must not run
// concurrently with them.
type Persister struct {
	store   Store
	cfg     Config
	log     logger.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string][]record.Item
	tables  []string // first-seen order
	report  Report
	eg      *errgroup.Group
}

// Option is a functional option for Persister objects.
type Option func(p *Persister) error

func OptLogger(l logger.Logger) Option {
	return func(p *Persister) error {
		p.log = l
		return nil
	}
}

// NewPersister validates cfg and returns a Persister writing to store.
func NewPersister(store Store, cfg Config, opts ...Option) (*Persister, error) {
	if store == nil {
		return nil, errors.New(errors.ErrInvalidConfig, "batch persister needs a store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.WritesPerSecond > 0 {
		limit = rate.Limit(cfg.WritesPerSecond)
	}
	p := &Persister{
		store:   store,
		cfg:     cfg,
		log:     logger.NopLogger,
		limiter: rate.NewLimiter(limit, cfg.Concurrency),
		pending: make(map[string][]record.Item),
	}
	p.eg = p.newGroup()
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}
	return p, nil
}

func (p *Persister) newGroup() *errgroup.Group {
	eg := &errgroup.Group{}
	eg.SetLimit(p.cfg.Concurrency)
	return eg
}

// Capacity returns the configured batch capacity.
func (p *Persister) Capacity() int { return p.cfg.Capacity }

// Pending returns the number of records accumulated for table and not yet
// handed to a flush task.
func (p *Persister) Pending(table string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending[table])
}

// Submit encodes rec and appends it to table's batch. A record which fails
// to encode is rejected alone and nothing is appended. When the batch
// reaches capacity it is handed to a flush task before Submit returns.
func (p *Persister) Submit(ctx context.Context, table string, rec record.Record) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "submitting to %s", table)
	}
	item, err := record.Encode(rec)
	if err != nil {
		return errors.Wrapf(err, "encoding record for %s", table)
	}

	p.mu.Lock()
	if _, ok := p.pending[table]; !ok {
		p.tables = append(p.tables, table)
	}
	p.pending[table] = append(p.pending[table], item)
	p.report.Submitted++
	var full []record.Item
	if len(p.pending[table]) >= p.cfg.Capacity {
		full = p.pending[table]
		p.pending[table] = nil
	}
	p.mu.Unlock()

	CounterRecordsSubmitted.WithLabelValues(table).Inc()
	if full != nil {
		p.start(ctx, table, full)
	}
	return nil
}

// Flush hands table's partial batch, if any, to a flush task.
func (p *Persister) Flush(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "flushing %s", table)
	}
	p.mu.Lock()
	items := p.pending[table]
	p.pending[table] = nil
	p.mu.Unlock()
	if len(items) == 0 {
		return nil
	}
	p.start(ctx, table, items)
	return nil
}

// Drain flushes every partial batch, waits for all flush tasks and returns
// the report along with the first task error. After cancellation, batches
// which were never sent are reported as rejected with the context error.
func (p *Persister) Drain(ctx context.Context) (Report, error) {
	p.mu.Lock()
	tables := append([]string(nil), p.tables...)
	p.mu.Unlock()

	for _, table := range tables {
		if err := p.Flush(ctx, table); err != nil {
			p.mu.Lock()
			items := p.pending[table]
			p.pending[table] = nil
			p.mu.Unlock()
			if len(items) > 0 {
				p.reject(table, items, err)
			}
		}
	}

	p.mu.Lock()
	eg := p.eg
	p.mu.Unlock()
	err := eg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.eg = p.newGroup()
	report := p.report
	report.Rejected = append([]RejectedBatch(nil), p.report.Rejected...)
	if err == nil && ctx.Err() != nil && len(report.Rejected) > 0 {
		err = errors.Wrap(ctx.Err(), "draining batches")
	}
	return report, err
}

func (p *Persister) start(ctx context.Context, table string, items []record.Item) {
	p.mu.Lock()
	p.report.Batches++
	eg := p.eg
	p.mu.Unlock()

	CounterBatchesFlushed.WithLabelValues(table).Inc()
	p.log.Debugf("flushing %d items to %s", len(items), table)
	eg.Go(func() error {
		return p.flush(ctx, table, items)
	})
}

var errUnprocessed = errors.New(errors.ErrStoreRejection, "store returned unprocessed items")

// flush writes one batch, retrying unprocessed items and transport failures
// until MaxAttempts requests have been made.
func (p *Persister) flush(ctx context.Context, table string, items []record.Item) error {
	remaining := items
	attempts := 0
	op := func() error {
		if attempts > 0 {
			CounterItemsRetried.WithLabelValues(table).Add(float64(len(remaining)))
		}
		attempts++
		if err := p.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.RequestTimeout))
		unprocessed, err := p.store.BatchWrite(reqCtx, table, remaining)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			p.log.Warnf("writing %d items to %s failed on attempt %d: %v", len(remaining), table, attempts, err)
			return errors.WithCode(errors.Wrapf(err, "writing %d items to %s", len(remaining), table), errors.ErrRemoteCall)
		}
		p.written(table, len(remaining)-len(unprocessed))
		remaining = unprocessed
		if len(remaining) > 0 {
			p.log.Debugf("%d items unprocessed by %s on attempt %d", len(remaining), table, attempts)
			return errUnprocessed
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(p.cfg.InitialInterval)
	bo.MaxInterval = time.Duration(p.cfg.MaxInterval)
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.cfg.MaxAttempts-1)), ctx)

	err := backoff.Retry(op, policy)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		uerr := &UnknownOutcomeError{Table: table, Items: remaining, Err: ctx.Err()}
		p.reject(table, remaining, uerr)
		return errors.WithStack(uerr)
	}
	if err == errUnprocessed {
		rerr := &StoreRejectionError{Table: table, Items: remaining, Attempts: attempts}
		p.reject(table, remaining, rerr)
		return errors.WithStack(rerr)
	}
	p.reject(table, remaining, err)
	return err
}

func (p *Persister) written(table string, n int) {
	if n <= 0 {
		return
	}
	CounterItemsWritten.WithLabelValues(table).Add(float64(n))
	p.mu.Lock()
	p.report.Written += n
	p.mu.Unlock()
}

func (p *Persister) reject(table string, items []record.Item, err error) {
	CounterItemsRejected.WithLabelValues(table).Add(float64(len(items)))
	p.log.Errorf("giving up on %d items for %s: %v", len(items), table, err)
	p.mu.Lock()
	p.report.Rejected = append(p.report.Rejected, RejectedBatch{Table: table, Items: items, Err: err})
	p.mu.Unlock()
}
