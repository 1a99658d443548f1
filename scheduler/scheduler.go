// Package scheduler plans and runs collection and analysis jobs. Jobs land
// in priority lanes with independent worker pools, run at a
// keyword-specific optimal time, and retry transient failures up to a
// fixed ceiling. A keyword's status is the lock of record: two runs for
// the same keyword never overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mapscout/cache"
	"mapscout/config"
	"mapscout/metrics"
	"mapscout/models"
	"mapscout/notify"
	"mapscout/storage"
	"mapscout/utils"
)

// Lane names. Each lane owns a worker pool, so a backlog in one cannot
// starve the others.
const (
	LaneCollection  = "collection"
	LaneAnalysis    = "analysis"
	LaneReporting   = "reporting"
	LaneMaintenance = "maintenance"
)

// lowSuccessThreshold is the rolling success rate below which Optimize
// moves a keyword into a different window.
const lowSuccessThreshold = 60.0

// sweepInterval spaces the maintenance lane's cache sweeps.
const sweepInterval = time.Hour

// Runner executes one job attempt for a keyword. Collection runners return
// how many listings the run produced; analysis runners return zero.
type Runner interface {
	Run(ctx context.Context, job *models.ScheduledJob, kw *models.Keyword) (results int, warnings models.Warnings, err error)
}

// Deps carries the scheduler's collaborators.
type Deps struct {
	Store      storage.Store
	Notifier   notify.Notifier
	Metrics    *metrics.Registry
	Cache      *cache.Cache
	Collection Runner
	Analysis   Runner

	// CollectionTimeout is the hard wall-clock limit for one collection
	// job, independent of page-level timeouts.
	CollectionTimeout time.Duration
}

// Scheduler owns the job queue and lane pools.
type Scheduler struct {
	cfg    config.SchedulerConfig
	logger *utils.Logger
	deps   Deps

	lanes   map[string]*utils.WorkerPool
	history *performanceHistory
	now     func() time.Time

	mu        sync.Mutex
	jobs      map[string]*models.ScheduledJob
	pending   []string
	cancels   map[string]context.CancelFunc
	lastSweep time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	loopDone chan struct{}
}

// New creates a Scheduler. Call Start to begin dispatching.
func New(cfg config.SchedulerConfig, logger *utils.Logger, deps Deps) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		logger: logger,
		deps:   deps,
		lanes: map[string]*utils.WorkerPool{
			LaneCollection:  utils.NewWorkerPool(cfg.CollectionWorkers, 0),
			LaneAnalysis:    utils.NewWorkerPool(cfg.AnalysisWorkers, 0),
			LaneReporting:   utils.NewWorkerPool(cfg.ReportingWorkers, 0),
			LaneMaintenance: utils.NewWorkerPool(cfg.MaintenanceWorkers, 0),
		},
		history: newPerformanceHistory(),
		now:     time.Now,
		jobs:    make(map[string]*models.ScheduledJob),
		cancels: make(map[string]context.CancelFunc),
		stopCh:  make(chan struct{}),
	}
}

// Submit plans a collection job for the keyword at its optimal time. An
// unknown keyword, or one already running, is rejected with ErrValidation.
func (s *Scheduler) Submit(ctx context.Context, keywordID int64) (string, error) {
	if keywordID <= 0 {
		return "", fmt.Errorf("keyword id %d: %w", keywordID, models.ErrValidation)
	}
	kw, err := s.deps.Store.LoadKeyword(ctx, keywordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("keyword %d: %w", keywordID, models.ErrValidation)
		}
		return "", err
	}
	if kw.Status == models.StatusInProgress {
		return "", fmt.Errorf("keyword %d already running: %w", keywordID, models.ErrValidation)
	}

	return s.enqueue(kw, models.JobCollection, 0), nil
}

// SubmitAnalysis plans an analysis job for the keyword's listings,
// scheduled immediately.
func (s *Scheduler) SubmitAnalysis(ctx context.Context, keywordID int64) (string, error) {
	kw, err := s.deps.Store.LoadKeyword(ctx, keywordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("keyword %d: %w", keywordID, models.ErrValidation)
		}
		return "", err
	}
	return s.enqueue(kw, models.JobAnalysis, 0), nil
}

// SubmitBatch plans collection jobs in batches: batch i is pushed out by
// i times the batch delay so a large submission does not land as one
// burst. Invalid keywords are skipped and logged.
func (s *Scheduler) SubmitBatch(ctx context.Context, keywordIDs []int64) []string {
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	jobIDs := make([]string, 0, len(keywordIDs))
	for i, keywordID := range keywordIDs {
		batch := i / batchSize
		offset := time.Duration(batch) * s.cfg.BatchDelay

		kw, err := s.deps.Store.LoadKeyword(ctx, keywordID)
		if err != nil {
			s.logger.Warn("[scheduler] Skipping keyword %d in batch: %v", keywordID, err)
			continue
		}
		if kw.Status == models.StatusInProgress {
			s.logger.Warn("[scheduler] Skipping keyword %d in batch: already running", keywordID)
			continue
		}
		jobIDs = append(jobIDs, s.enqueue(kw, models.JobCollection, offset))
	}
	return jobIDs
}

func (s *Scheduler) enqueue(kw *models.Keyword, kind models.JobKind, offset time.Duration) string {
	now := s.now()
	lane := LaneCollection
	when := OptimalTime(kw.Text, kw.Priority, s.history.SuccessRate(kw.ID), now).Add(offset)
	if kind == models.JobAnalysis {
		lane = LaneAnalysis
		when = now.Add(offset)
	}

	job := &models.ScheduledJob{
		ID:          uuid.NewString(),
		KeywordID:   kw.ID,
		Kind:        kind,
		Lane:        lane,
		ScheduledAt: when,
		Priority:    kw.Priority,
		Status:      models.JobScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.pending = append(s.pending, job.ID)
	s.mu.Unlock()

	s.logger.Info("[scheduler] Planned %s job %s for keyword %q at %s",
		kind, job.ID, kw.Text, when.Format(time.RFC3339))
	return job.ID
}

// Cancel removes a scheduled job or signals a running one. It reports
// whether anything was cancelled; terminal jobs are left untouched.
func (s *Scheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return false
	}

	switch job.Status {
	case models.JobScheduled:
		for i, id := range s.pending {
			if id == jobID {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				break
			}
		}
		s.markLocked(job, models.JobCancelled, "cancelled before start")
		return true
	case models.JobRunning:
		if cancel, ok := s.cancels[jobID]; ok {
			cancel()
		}
		s.markLocked(job, models.JobCancelled, "cancelled while running")
		return true
	}
	return false
}

// Status returns the job's state.
func (s *Scheduler) Status(jobID string) (models.JobState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[jobID]; ok {
		return job.Status, true
	}
	return "", false
}

// Job returns a snapshot of the job, queryable in every state.
func (s *Scheduler) Job(jobID string) (models.ScheduledJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[jobID]; ok {
		return *job, true
	}
	return models.ScheduledJob{}, false
}

// Start runs the dispatch loop until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.loopDone = make(chan struct{})
	go func() {
		defer close(s.loopDone)
		ticker := time.NewTicker(s.cfg.Tick)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.DispatchDue(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts dispatching and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.loopDone != nil {
		<-s.loopDone
	}
	s.WaitIdle()
}

// WaitIdle blocks until every lane has drained.
func (s *Scheduler) WaitIdle() {
	for _, pool := range s.lanes {
		pool.Wait()
	}
}

// DispatchDue hands every due pending job to its lane. A saturated lane
// keeps its jobs pending for the next pass. It also triggers the periodic
// maintenance sweep.
func (s *Scheduler) DispatchDue(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var due []*models.ScheduledJob
	var still []string
	for _, id := range s.pending {
		job := s.jobs[id]
		if job.Status == models.JobScheduled && !job.ScheduledAt.After(now) {
			due = append(due, job)
		} else {
			still = append(still, id)
		}
	}
	s.pending = still
	s.mu.Unlock()

	dispatched := 0
	for _, job := range due {
		job := job
		pool := s.lanes[job.Lane]
		if pool.TrySubmit(func() { s.runJob(ctx, job) }) {
			dispatched++
			continue
		}
		// Lane is full; retry on the next tick.
		s.mu.Lock()
		s.pending = append(s.pending, job.ID)
		s.mu.Unlock()
	}

	s.maybeSweep()
	return dispatched
}

// maybeSweep schedules a cache sweep on the maintenance lane once per
// interval.
func (s *Scheduler) maybeSweep() {
	if s.deps.Cache == nil {
		return
	}

	s.mu.Lock()
	now := s.now()
	if now.Sub(s.lastSweep) < sweepInterval {
		s.mu.Unlock()
		return
	}
	s.lastSweep = now
	s.mu.Unlock()

	s.lanes[LaneMaintenance].Submit(func() {
		if evicted := s.deps.Cache.Sweep(); evicted > 0 {
			s.logger.Info("[scheduler] Cache sweep evicted %d entries", evicted)
		}
	})
}

func (s *Scheduler) runJob(ctx context.Context, job *models.ScheduledJob) {
	kw, err := s.deps.Store.LoadKeyword(ctx, job.KeywordID)
	if err != nil {
		s.finishJob(ctx, job, nil, 0, fmt.Errorf("load keyword %d: %w", job.KeywordID, err))
		return
	}
	// Re-check the lock at dispatch: another job may have started since
	// this one was planned.
	if kw.Status == models.StatusInProgress {
		s.mu.Lock()
		job.ScheduledAt = s.now().Add(s.cfg.Tick)
		s.pending = append(s.pending, job.ID)
		s.mu.Unlock()
		return
	}

	var jobCtx context.Context
	var cancel context.CancelFunc
	if job.Kind == models.JobCollection && s.deps.CollectionTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, s.deps.CollectionTimeout)
	} else {
		jobCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	s.mu.Lock()
	job.Status = models.JobRunning
	job.UpdatedAt = s.now()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	if s.deps.Metrics != nil {
		s.deps.Metrics.JobStarted(job.Lane)
	}
	if err := s.deps.Store.UpdateKeywordStatus(ctx, kw.ID, models.StatusInProgress); err != nil {
		s.logger.Warn("[scheduler] Could not mark keyword %d in progress: %v", kw.ID, err)
	}

	results, warnings, err := s.runWithRetries(jobCtx, job, kw)

	s.mu.Lock()
	delete(s.cancels, job.ID)
	job.Warnings = append(job.Warnings, warnings...)
	s.mu.Unlock()

	// No free session slot: the job stays scheduled and comes back on the
	// next tick, without spending an attempt, like the locked-keyword
	// deferral above.
	if errors.Is(err, models.ErrResourceExhausted) && s.deferJob(job) {
		if err := s.deps.Store.UpdateKeywordStatus(ctx, kw.ID, models.StatusPending); err != nil {
			s.logger.Warn("[scheduler] Could not release keyword %d after deferral: %v", kw.ID, err)
		}
		s.logger.Warn("[scheduler] Job %s deferred, no session slot free", job.ID)
		return
	}

	s.finishJob(ctx, job, kw, results, err)
}

// deferJob puts a running job back on the pending queue for the next tick.
// It reports false when the job was cancelled in the meantime.
func (s *Scheduler) deferJob(job *models.ScheduledJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.Status != models.JobRunning {
		return false
	}
	job.Status = models.JobScheduled
	job.Attempts = 0
	job.ScheduledAt = s.now().Add(s.cfg.Tick)
	job.UpdatedAt = s.now()
	s.pending = append(s.pending, job.ID)
	return true
}

// runWithRetries executes up to MaxRetries+1 attempts with a fixed,
// cancellable delay between them. Non-retryable failures stop immediately.
func (s *Scheduler) runWithRetries(ctx context.Context, job *models.ScheduledJob, kw *models.Keyword) (int, models.Warnings, error) {
	runner := s.deps.Collection
	if job.Kind == models.JobAnalysis {
		runner = s.deps.Analysis
	}

	var lastErr error
	var allWarnings models.Warnings

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		s.mu.Lock()
		job.Attempts = attempt + 1
		s.mu.Unlock()

		results, warnings, err := runner.Run(ctx, job, kw)
		allWarnings = append(allWarnings, warnings...)
		if err == nil {
			return results, allWarnings, nil
		}
		lastErr = err

		// A full session pool is not a job failure. Hand the error straight
		// back so runJob can return the job to the queue with its attempt
		// budget intact.
		if errors.Is(err, models.ErrResourceExhausted) {
			return 0, allWarnings, err
		}
		if ctx.Err() != nil {
			return 0, allWarnings, ctx.Err()
		}
		if !models.Retryable(err) {
			s.logger.Warn("[scheduler] Job %s failed terminally: %v", job.ID, err)
			break
		}
		if attempt == s.cfg.MaxRetries {
			break
		}

		s.logger.Warn("[scheduler] Job %s attempt %d failed, retrying in %v: %v",
			job.ID, attempt+1, s.cfg.RetryDelay, err)
		select {
		case <-time.After(s.cfg.RetryDelay):
		case <-ctx.Done():
			return 0, allWarnings, ctx.Err()
		}
	}

	return 0, allWarnings, lastErr
}

func (s *Scheduler) finishJob(ctx context.Context, job *models.ScheduledJob, kw *models.Keyword, results int, err error) {
	s.mu.Lock()
	cancelled := job.Status == models.JobCancelled
	s.mu.Unlock()

	if kw != nil && job.Kind == models.JobCollection {
		s.history.Record(kw.ID, err == nil && results > 0, results)
	}

	switch {
	case cancelled:
		if kw != nil {
			if err := s.deps.Store.UpdateKeywordStatus(ctx, kw.ID, models.StatusPending); err != nil {
				s.logger.Warn("[scheduler] Could not release keyword %d after cancel: %v", kw.ID, err)
			}
		}
		s.logger.Info("[scheduler] Job %s cancelled", job.ID)

	case err != nil:
		s.mark(job, models.JobFailed, err.Error())
		if s.deps.Metrics != nil {
			s.deps.Metrics.JobFailed(job.Lane)
		}
		if kw != nil {
			if err := s.deps.Store.UpdateKeywordStatus(ctx, kw.ID, models.StatusError); err != nil {
				s.logger.Warn("[scheduler] Could not mark keyword %d errored: %v", kw.ID, err)
			}
		}
		s.notifyAsync(notify.EventRetriesExhausted, notify.Payload{
			KeywordID: job.KeywordID,
			JobID:     job.ID,
			Message:   err.Error(),
		})
		s.logger.Error("[scheduler] Job %s failed after %d attempts: %v", job.ID, job.Attempts, err)

	default:
		s.mark(job, models.JobCompleted, "")
		if s.deps.Metrics != nil {
			s.deps.Metrics.JobSucceeded(job.Lane)
		}
		if kw != nil && job.Kind == models.JobCollection {
			rate := s.history.SuccessRate(kw.ID)
			now := s.now()
			if err := s.deps.Store.UpdateKeywordStatus(ctx, kw.ID, models.StatusCompleted); err != nil {
				s.logger.Warn("[scheduler] Could not mark keyword %d completed: %v", kw.ID, err)
			}
			if err := s.deps.Store.UpdateKeywordRunStats(ctx, kw.ID, results, rate, now); err != nil {
				s.logger.Warn("[scheduler] Could not record run stats for keyword %d: %v", kw.ID, err)
			}
			s.notifyAsync(notify.EventCollectionComplete, notify.Payload{
				KeywordID: kw.ID,
				JobID:     job.ID,
				Results:   results,
				Message:   fmt.Sprintf("Collection for %q finished with %d listings", kw.Text, results),
			})
			// The collected listings flow straight into website analysis.
			if results > 0 && s.deps.Analysis != nil {
				s.enqueue(kw, models.JobAnalysis, 0)
			}
		} else if kw != nil {
			if err := s.deps.Store.UpdateKeywordStatus(ctx, kw.ID, models.StatusCompleted); err != nil {
				s.logger.Warn("[scheduler] Could not mark keyword %d completed: %v", kw.ID, err)
			}
		}
		s.logger.Info("[scheduler] Job %s completed", job.ID)
	}
}

// notifyAsync delivers the event on the reporting lane so slow notifier
// implementations cannot hold a worker.
func (s *Scheduler) notifyAsync(eventType string, payload notify.Payload) {
	if s.deps.Notifier == nil {
		return
	}
	s.lanes[LaneReporting].Submit(func() {
		s.deps.Notifier.Notify(eventType, payload)
	})
}

func (s *Scheduler) mark(job *models.ScheduledJob, state models.JobState, lastErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markLocked(job, state, lastErr)
}

func (s *Scheduler) markLocked(job *models.ScheduledJob, state models.JobState, lastErr string) {
	if job.Status.Terminal() {
		return
	}
	job.Status = state
	job.LastError = lastErr
	job.UpdatedAt = s.now()
}

// Optimize reschedules keywords that are underperforming or stale. Pending
// jobs for low-success keywords move to a recomputed window; stale
// keywords with no pending or running job get a fresh collection job. It
// returns how many keywords were touched.
func (s *Scheduler) Optimize(ctx context.Context) int {
	touched := 0
	now := s.now()

	for _, keywordID := range s.history.TrackedKeywords() {
		kw, err := s.deps.Store.LoadKeyword(ctx, keywordID)
		if err != nil {
			continue
		}

		rate := s.history.SuccessRate(keywordID)
		hasOpen := s.hasOpenJob(keywordID)

		switch {
		case rate < lowSuccessThreshold && hasOpen:
			when := OptimalTime(kw.Text, kw.Priority, rate, now)
			if s.reschedulePending(keywordID, when) {
				s.logger.Info("[scheduler] Moved low-success keyword %q (%.0f%%) to %s",
					kw.Text, rate, when.Format(time.RFC3339))
				touched++
			}

		case !hasOpen && !kw.LastScraped.IsZero() && now.Sub(kw.LastScraped) > s.cfg.StaleAfter:
			if kw.Status == models.StatusInProgress {
				continue
			}
			s.enqueue(kw, models.JobCollection, 0)
			s.logger.Info("[scheduler] Requeued stale keyword %q (last run %s)",
				kw.Text, kw.LastScraped.Format(time.RFC3339))
			touched++
		}
	}

	if touched > 0 {
		s.notifyAsync(notify.EventSystemAlert, notify.Payload{
			Message: fmt.Sprintf("optimization pass rescheduled %d keywords", touched),
		})
	}
	return touched
}

func (s *Scheduler) hasOpenJob(keywordID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.KeywordID == keywordID && !job.Status.Terminal() {
			return true
		}
	}
	return false
}

func (s *Scheduler) reschedulePending(keywordID int64, when time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.pending {
		job := s.jobs[id]
		if job.KeywordID == keywordID && job.Status == models.JobScheduled {
			// The recomputed slot can coincide with the one that keeps
			// failing; defer a day in that case so the window actually
			// changes.
			if when.Equal(job.ScheduledAt) {
				when = when.AddDate(0, 0, 1)
			}
			job.ScheduledAt = when
			job.UpdatedAt = s.now()
			return true
		}
	}
	return false
}
