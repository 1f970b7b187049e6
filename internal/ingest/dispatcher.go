package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"fieldload/domain/core"
	"fieldload/domain/fieldvalue"
	"fieldload/internal/diaglog"
	"fieldload/internal/errors"
	"fieldload/internal/report"
	"fieldload/ports"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the worker pool size when none is configured
const DefaultConcurrency = 10

// Options configures a Dispatcher
type Options struct {
	Concurrency int
	Logger      diaglog.Logger
}

// Dispatcher drains a RowSource on one goroutine and hands each keyed row
// to a fixed-size worker pool. Failures are contained per row.
type Dispatcher struct {
	keys        KeyBuilder
	gate        *DedupGate
	upserter    *Upserter
	concurrency int
	logger      diaglog.Logger
}

// NewDispatcher wires the pipeline. The gate is owned by the caller so that
// separate batches can use separate gates.
func NewDispatcher(keys KeyBuilder, gate *DedupGate, upserter *Upserter, opts Options) *Dispatcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = diaglog.Nop
	}
	return &Dispatcher{
		keys:        keys,
		gate:        gate,
		upserter:    upserter,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
}

// counters are the commutative aggregates of a run
type counters struct {
	rowsSeen          atomic.Int64
	uniqueSent        atomic.Int64
	duplicatesSkipped atomic.Int64
	skippedEmpty      atomic.Int64
	errors            atomic.Int64
	parseErrors       atomic.Int64

	latencyMu sync.Mutex
	latencies []time.Duration
}

// record counts one row by its outcome. A ParseError reached the server, so
// it counts as sent as well as an error.
func (c *counters) record(o fieldvalue.Outcome) {
	switch o {
	case fieldvalue.OutcomeSent:
		c.uniqueSent.Add(1)
	case fieldvalue.OutcomeParseError:
		c.uniqueSent.Add(1)
		c.parseErrors.Add(1)
	case fieldvalue.OutcomeSkippedDuplicate:
		c.duplicatesSkipped.Add(1)
	case fieldvalue.OutcomeSkippedEmpty:
		c.skippedEmpty.Add(1)
	}
	if o.IsError() {
		c.errors.Add(1)
	}
}

func (c *counters) observe(d time.Duration) {
	c.latencyMu.Lock()
	c.latencies = append(c.latencies, d)
	c.latencyMu.Unlock()
}

// Run processes every row of source and returns once the source is
// exhausted and all submitted work has finished. ctx is passed to the HTTP
// calls; the batch itself cannot be cancelled.
func (d *Dispatcher) Run(ctx context.Context, source ports.RowSource, environmentID, fieldName string) fieldvalue.BatchSummary {
	summary := fieldvalue.BatchSummary{
		RunID:         core.NewRunID(),
		EnvironmentID: environmentID,
		FieldName:     fieldName,
		StartedAt:     time.Now(),
	}
	log.Printf("[Dispatcher] run %s started with %d workers", summary.RunID, d.concurrency)

	var c counters
	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)

	for {
		row, ok := source.Next(context.Background())
		if !ok {
			break
		}
		c.rowsSeen.Add(1)

		key, ok, err := d.buildKey(row, environmentID, fieldName)
		if err != nil {
			d.rowFailed(&c, row, err)
			continue
		}
		if !ok {
			c.record(fieldvalue.OutcomeSkippedEmpty)
			continue
		}

		// Go blocks while the pool is full
		g.Go(func() error {
			d.process(ctx, &c, row, key)
			return nil
		})
	}
	_ = g.Wait()

	if err := source.Err(); err != nil {
		summary.SourceError = err.Error()
		d.logger.Warnf("run %s: row source ended early: %v", summary.RunID, err)
	}

	summary.RowsSeen = c.rowsSeen.Load()
	summary.UniqueSent = c.uniqueSent.Load()
	summary.DuplicatesSkipped = c.duplicatesSkipped.Load()
	summary.SkippedEmpty = c.skippedEmpty.Load()
	summary.Errors = c.errors.Load()
	summary.ParseErrors = c.parseErrors.Load()
	summary.Latency = report.SummarizeLatency(c.latencies)
	summary.Duration = time.Since(summary.StartedAt)

	log.Printf("[Dispatcher] run %s finished in %v: %d rows, %d sent, %d duplicates, %d empty, %d errors",
		summary.RunID, summary.Duration.Round(time.Millisecond), summary.RowsSeen, summary.UniqueSent,
		summary.DuplicatesSkipped, summary.SkippedEmpty, summary.Errors)
	return summary
}

func (d *Dispatcher) buildKey(row fieldvalue.Row, environmentID, fieldName string) (key fieldvalue.RequestKey, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	key, ok = d.keys.Build(row, environmentID, fieldName)
	if ok {
		d.logger.Debugf("built key %s", key)
	}
	return key, ok, nil
}

// process handles one admitted-or-rejected row. A panic here is counted as
// an error for this row only.
func (d *Dispatcher) process(ctx context.Context, c *counters, row fieldvalue.Row, key fieldvalue.RequestKey) {
	defer func() {
		if r := recover(); r != nil {
			d.rowFailed(c, row, fmt.Errorf("panic: %v", r))
		}
	}()

	if !d.gate.Admit(key) {
		c.record(fieldvalue.OutcomeSkippedDuplicate)
		d.logger.Infof("already sent %s, skipping", key)
		return
	}

	result := d.upserter.Submit(ctx, key)
	c.observe(result.Latency)
	c.record(result.Outcome)
}

func (d *Dispatcher) rowFailed(c *counters, row fieldvalue.Row, cause error) {
	c.errors.Add(1)
	err := errors.RowProcessingError(map[string]string(row), cause)
	log.Printf("[Dispatcher] failed to process a row, see diagnostic log")
	d.logger.Errorf("%v", err)
}
