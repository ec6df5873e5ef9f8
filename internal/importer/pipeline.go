package importer

// pipeline.go is the per-session run loop: parse, validate, commit, finalize.

import (
	"bytes"
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"rosterimport/internal/schema"
)

// run executes the whole pipeline for one session. It always produces a
// summary, even when parsing fails before any row is processed.
func (s *Service) run(ctx context.Context, sess *session, def schema.Definition, contentType string, fileData []byte) {
	logger := slog.Default().With("session_id", sess.ID, "schema", def.Key)
	start := time.Now()

	defer s.limiter.Release()
	defer s.cleanup(sess.ID, sessionRetention)
	defer sess.cancel()

	summary := &Summary{
		SessionID: sess.ID,
		SchemaKey: def.Key,
		FileName:  sess.FileName,
		StartedAt: sess.StartedAt,
	}
	report := &errorReport{}

	// Phase: parsing
	sess.tracker.update(func(p *Progress) { p.State = StateParsing })

	_, rows, err := Parse(bytes.NewReader(fileData), contentType, def)
	if err != nil {
		logger.Warn("import failed during parse", "error", err)
		summary.FatalError = err.Error()
		s.finalize(ctx, sess, summary, report, StateFailed, start)
		return
	}

	total := len(rows)
	summary.TotalRows = total
	logger.Info("file parsed", "rows", total)

	// Phase: validating. Each row takes one progress unit at validation and
	// a second at its commit outcome (or immediately on rejection), so the
	// denominator is fixed at 2N as soon as the row count is known.
	sess.tracker.update(func(p *Progress) {
		p.State = StateValidating
		p.TotalRows = total
		p.Total = 2 * total
	})

	valid, rejectedRows := s.validateAll(def, rows, sess.tracker)

	// Fold validation results in row order. Only this goroutine writes the
	// report and summary counters.
	for _, row := range rows {
		if errs, ok := rejectedRows[row.Number]; ok {
			report.addValidation(errs...)
		}
	}

	// Batch-level uniqueness: later duplicates of a unique field are
	// rejected exactly like any other validation failure.
	valid, dupRejected := checkBatchUnique(def, valid)
	for _, rec := range rows {
		if errs, ok := dupRejected[rec.Number]; ok {
			report.addValidation(errs...)
		}
	}

	rejectedCount := len(rejectedRows) + len(dupRejected)
	summary.RejectedAtValidation = rejectedCount
	for i := 0; i < rejectedCount; i++ {
		s.metrics.RowRejected()
	}

	// Rejected rows never reach commit; take their second unit now.
	sess.tracker.update(func(p *Progress) {
		p.Processed += rejectedCount
	})

	// Phase: committing
	sess.tracker.update(func(p *Progress) { p.State = StateCommitting })

	for outcome := range s.commitAll(ctx, def, valid) {
		report.addOutcome(outcome)

		switch outcome.Status {
		case StatusCommitted:
			summary.Committed++
			s.metrics.RowCommitted()
		case StatusFailed:
			summary.CommitFailed++
			s.metrics.RowCommitFailed()
		case StatusCancelled:
			summary.Cancelled++
			s.metrics.RowCancelled()
		}

		sess.tracker.update(func(p *Progress) {
			p.Processed++
			p.RowsCommitted = summary.Committed
			p.RowsFailed = summary.CommitFailed
		})
	}

	state := StateCompleted
	if report.len() > 0 {
		state = StateCompletedWithErrors
	}

	logger.Info("import finished",
		"state", string(state),
		"rows", total,
		"committed", summary.Committed,
		"rejected", summary.RejectedAtValidation,
		"commit_failed", summary.CommitFailed,
		"cancelled", summary.Cancelled,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	s.finalize(ctx, sess, summary, report, state, start)
}

// validateAll fans row validation out over a bounded worker group. Results
// are re-attached to their row numbers, so aggregation order does not depend
// on scheduling.
func (s *Service) validateAll(def schema.Definition, rows []RawRow, tracker *progressTracker) ([]NormalizedRecord, map[int][]ValidationError) {
	workers := s.opts.ValidateWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	validator := NewValidator(def)
	results := make([]*NormalizedRecord, len(rows))
	rowErrs := make([][]ValidationError, len(rows))

	var g errgroup.Group
	g.SetLimit(workers)

	for i := range rows {
		i := i
		g.Go(func() error {
			rec, errs := validator.ValidateRow(rows[i])
			if len(errs) > 0 {
				rowErrs[i] = errs
			} else {
				results[i] = &rec
			}

			tracker.update(func(p *Progress) {
				p.Processed++
				p.RowsValidated++
			})
			s.metrics.RowValidated()
			return nil
		})
	}
	g.Wait()

	var valid []NormalizedRecord
	rejected := make(map[int][]ValidationError)
	for i, row := range rows {
		if results[i] != nil {
			valid = append(valid, *results[i])
		} else {
			rejected[row.Number] = rowErrs[i]
		}
	}
	return valid, rejected
}

// commitAll submits records through a bounded worker pool and streams one
// outcome per record. Completion order is not guaranteed; outcomes carry
// their row number. Once ctx is cancelled no new record is dispatched:
// remaining records drain as cancelled outcomes while in-flight calls finish.
func (s *Service) commitAll(ctx context.Context, def schema.Definition, records []NormalizedRecord) <-chan CommitOutcome {
	outcomes := make(chan CommitOutcome, len(records))
	if len(records) == 0 {
		close(outcomes)
		return outcomes
	}

	jobs := make(chan NormalizedRecord)
	var g errgroup.Group

	workers := s.opts.CommitWorkers
	if workers > len(records) {
		workers = len(records)
	}

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for rec := range jobs {
				if ctx.Err() != nil {
					outcomes <- CommitOutcome{Row: rec.Row, Status: StatusCancelled}
					continue
				}

				started := time.Now()
				out := s.committer.Commit(ctx, def, rec)
				s.metrics.ObserveCommit(time.Since(started))
				outcomes <- out
			}
			return nil
		})
	}

	go func() {
		defer close(outcomes)

		for i, rec := range records {
			select {
			case jobs <- rec:
			case <-ctx.Done():
				// Stop dispatching; everything not yet handed to a worker
				// is cancelled, not failed.
				for _, rest := range records[i:] {
					outcomes <- CommitOutcome{Row: rest.Row, Status: StatusCancelled}
				}
				close(jobs)
				g.Wait()
				return
			}
		}
		close(jobs)
		g.Wait()
	}()

	return outcomes
}

// finalize records the terminal state, publishes the summary and persists it.
func (s *Service) finalize(ctx context.Context, sess *session, summary *Summary, report *errorReport, state SessionState, start time.Time) {
	summary.State = state
	summary.Errors = report.sorted()
	summary.Duration = time.Since(start)

	sess.mu.Lock()
	sess.summary = summary
	sess.mu.Unlock()

	sess.tracker.finish(state)
	close(sess.done)

	s.metrics.SessionFinished(string(state))

	if s.store != nil {
		// The session context may already be cancelled; persistence gets
		// its own deadline so a cancelled import still leaves a record.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := s.store.SaveSummary(saveCtx, *summary); err != nil {
			slog.Error("failed to persist import summary",
				"session_id", sess.ID, "error", err)
		}
	}
}
