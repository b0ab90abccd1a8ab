// Package pipeline runs batches of deed documents through the
// two-stage extraction pipeline: a pool of stage-1 OCR workers feeding
// a bounded hand-off buffer, drained by a pool of stage-2 extraction
// workers. The buffer is the only backpressure between the stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/deedworks/deedflow/deed"
	"github.com/deedworks/deedflow/store"
)

// ErrBatchRunning is returned when a batch is started while another is
// still in flight.
var ErrBatchRunning = errors.New("a batch is already running")

// Stage1 produces the hand-off record for one task.
type Stage1 interface {
	ProcessStage1(ctx context.Context, tok *Token, task deed.Task) deed.Stage1Output
}

// Stage2 consumes one hand-off record and produces the terminal
// outcome. Finalize settles outputs that must not enter the hand-off
// buffer: stage-1 failures and stopped documents.
type Stage2 interface {
	ProcessStage2(ctx context.Context, tok *Token, out deed.Stage1Output) deed.Result
	Finalize(ctx context.Context, out deed.Stage1Output) deed.Result
}

// Sessions is the batch-session bookkeeping the coordinator drives.
type Sessions interface {
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, processed, successful, failed, stopped int) error
}

// Coordinator owns one batch run at a time.
type Coordinator struct {
	cfg      Config
	stage1   Stage1
	stage2   Stage2
	sessions Sessions
	notify   Notifier

	stats         Stats
	running       atomic.Bool
	stopRequested atomic.Bool
}

// New builds a coordinator. The configuration is normalized once here.
func New(cfg Config, stage1 Stage1, stage2 Stage2, sessions Sessions, notify Notifier) *Coordinator {
	cfg.Normalize()
	return &Coordinator{
		cfg:      cfg,
		stage1:   stage1,
		stage2:   stage2,
		sessions: sessions,
		notify:   notify,
	}
}

// Stats returns a consistent snapshot of the current run.
func (c *Coordinator) Stats() Snapshot { return c.stats.Snapshot() }

// Stop requests a cooperative stop. In-flight phases run to completion;
// documents not yet started are marked stopped with their files left in
// place. Stop never blocks.
func (c *Coordinator) Stop() {
	if c.running.Load() {
		c.stopRequested.Store(true)
		log.Info("stop requested; draining in-flight documents")
	}
}

// RunBatch processes every task of the batch and returns once both
// stages have fully drained. Exactly one batch runs at a time.
func (c *Coordinator) RunBatch(ctx context.Context, batch deed.Batch) (deed.BatchSummary, error) {
	if !c.running.CompareAndSwap(false, true) {
		return deed.BatchSummary{}, ErrBatchRunning
	}
	defer c.running.Store(false)
	c.stopRequested.Store(false)

	var tok = &Token{stop: &c.stopRequested}
	c.stats.StartBatch(len(batch.Tasks), c.cfg.OCRWorkers, c.cfg.LLMWorkers)
	defer c.stats.Finish()

	log.WithFields(log.Fields{
		"batch":      batch.ID,
		"documents":  len(batch.Tasks),
		"ocrWorkers": c.cfg.OCRWorkers,
		"llmWorkers": c.cfg.LLMWorkers,
		"handoff":    c.cfg.HandoffCapacity,
	}).Info("batch started")

	if c.sessions != nil {
		if err := c.sessions.MarkProcessing(ctx, batch.ID); err != nil {
			return deed.BatchSummary{}, fmt.Errorf("starting batch session: %w", err)
		}
	}

	var (
		tasks    = make(chan deed.Task)
		handoff  = make(chan deed.Stage1Output, c.cfg.HandoffCapacity)
		results  = make(chan deed.Result)
		wg1, wg2 sync.WaitGroup
	)
	c.stats.TrackBuffer(func() int { return len(handoff) })

	go func() {
		defer close(tasks)
		for _, task := range batch.Tasks {
			tasks <- task
		}
	}()

	for i := 0; i < c.cfg.OCRWorkers; i++ {
		wg1.Add(1)
		go func() {
			defer wg1.Done()
			for task := range tasks {
				c.stats.Stage1Start(task.DocumentID)
				var out = c.stage1.ProcessStage1(ctx, tok, task)

				// Failed and stopped documents never enter the buffer;
				// they settle immediately.
				if out.Status != deed.StatusOk {
					var res = c.stage2.Finalize(ctx, out)
					c.stats.Terminal(res.Status)
					c.stats.Stage1Done()
					results <- res
					continue
				}

				// Blocks while the buffer is full; this is the
				// backpressure that keeps rendered pages bounded. The
				// worker counts as active until its output is accepted.
				handoff <- out
				handoffDepth.Set(float64(len(handoff)))
				c.stats.Stage1Done()
			}
		}()
	}

	// The buffer closes only after every stage-1 worker has exited;
	// stage-2 drains it until closed and empty.
	go func() {
		wg1.Wait()
		close(handoff)
	}()

	for i := 0; i < c.cfg.LLMWorkers; i++ {
		wg2.Add(1)
		go func() {
			defer wg2.Done()
			for out := range handoff {
				handoffDepth.Set(float64(len(handoff)))

				c.stats.Stage2Start(out.DocumentID)
				var res = c.stage2.ProcessStage2(ctx, tok, out)
				c.stats.Stage2Done(res.Status)
				results <- res
			}
		}()
	}

	// Stage-1 workers also publish settled results directly, so the
	// results channel closes only after both pools have exited.
	go func() {
		wg1.Wait()
		wg2.Wait()
		close(results)
	}()

	var summary = deed.BatchSummary{Total: len(batch.Tasks)}
	for res := range results {
		summary.Processed++
		switch res.Status {
		case deed.StatusOk:
			summary.Successful++
		case deed.StatusFailed:
			summary.Failed++
		case deed.StatusStopped:
			summary.Stopped++
		}
		documentsProcessed.WithLabelValues(string(res.Status)).Inc()
		summary.Results = append(summary.Results, res)
	}

	// Both stages have drained; the session completes exactly once,
	// stopped or not.
	if c.sessions != nil {
		if err := c.sessions.MarkCompleted(ctx, batch.ID,
			summary.Processed, summary.Successful, summary.Failed, summary.Stopped); err != nil {
			log.WithFields(log.Fields{"batch": batch.ID, "error": err}).
				Error("batch session not marked completed")
		}
	}
	if c.notify != nil {
		c.notify.Emit(ctx, batch.ID, "",
			store.BatchSeverity(summary.Successful, summary.Failed),
			fmt.Sprintf("batch %s (%s) complete: %d ok, %d failed, %d stopped of %d",
				batch.ID, batch.Name, summary.Successful, summary.Failed, summary.Stopped, summary.Total))
	}

	log.WithFields(log.Fields{
		"batch":      batch.ID,
		"processed":  summary.Processed,
		"successful": summary.Successful,
		"failed":     summary.Failed,
		"stopped":    summary.Stopped,
	}).Info("batch complete")

	return summary, nil
}
