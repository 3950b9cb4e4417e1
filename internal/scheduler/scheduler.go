package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/roomsage/onboarder/internal/logging"
	"github.com/roomsage/onboarder/internal/merge"
	"github.com/roomsage/onboarder/internal/node"
	"github.com/roomsage/onboarder/internal/onboarding"
	"github.com/roomsage/onboarder/internal/progress"
)

// Progress weight per category. Crawl-heavy categories weigh more so the
// reported percentage tracks wall time better than a flat quarter each.
var progressWeights = map[onboarding.Category]float64{
	onboarding.CategoryBasicInfo:     0.2,
	onboarding.CategoryDescription:   0.2,
	onboarding.CategoryConfiguration: 0.3,
	onboarding.CategoryTenancy:       0.3,
}

// NodeRunner executes one category node to completion or final failure.
type NodeRunner interface {
	Run(ctx context.Context, seedURL string, category onboarding.Category, opts node.Options) (node.Result, error)
}

// Config bounds the scheduler.
type Config struct {
	MaxJobs   int
	MaxNodes  int
	QueueSize int
}

// SubmitRequest describes a new onboarding job.
type SubmitRequest struct {
	SourceURL     string
	CompetitorURL string
	Priority      onboarding.Priority
	Strategy      onboarding.Strategy
}

// Scheduler owns the admission queue and the per-job execution goroutines.
type Scheduler struct {
	store    onboarding.JobStore
	runner   NodeRunner
	recorder *progress.Recorder
	clock    onboarding.Clock
	ids      onboarding.IDGenerator
	cfg      Config
	logger   *zap.Logger

	jobSem  *semaphore.Weighted
	nodeSem *semaphore.Weighted

	mu        sync.Mutex
	queue     []queuedJob
	nextOrder int64
	cancels   map[string]context.CancelFunc
	wake      chan struct{}

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
	started    bool
}

type queuedJob struct {
	id       string
	priority onboarding.Priority
	order    int64
}

// New wires a scheduler. A nil logger disables logging.
func New(
	store onboarding.JobStore,
	runner NodeRunner,
	recorder *progress.Recorder,
	clock onboarding.Clock,
	ids onboarding.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 4
	}
	if cfg.MaxNodes <= 0 {
		cfg.MaxNodes = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Scheduler{
		store:    store,
		runner:   runner,
		recorder: recorder,
		clock:    clock,
		ids:      ids,
		cfg:      cfg,
		logger:   logging.OrNop(logger),
		jobSem:   semaphore.NewWeighted(int64(cfg.MaxJobs)),
		nodeSem:  semaphore.NewWeighted(int64(cfg.MaxNodes)),
		cancels:  make(map[string]context.CancelFunc),
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the admission loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.rootCtx, s.rootCancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.admitLoop()
}

// Close stops admission, cancels running jobs, and waits for them to unwind.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.rootCancel
	s.mu.Unlock()
	cancel()
	s.wg.Wait()
}

// ErrInvalidRequest marks submissions rejected by validation.
var ErrInvalidRequest = errors.New("invalid request")

// ErrQueueFull rejects admissions beyond the configured queue capacity.
var ErrQueueFull = errors.New("admission queue is full")

// Submit validates, persists, and queues a new job. It returns the job id.
func (s *Scheduler) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if strings.TrimSpace(req.SourceURL) == "" {
		return "", fmt.Errorf("%w: source url is required", ErrInvalidRequest)
	}
	if req.Priority == "" {
		req.Priority = onboarding.PriorityNormal
	}
	if !req.Priority.Valid() {
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidRequest, req.Priority)
	}
	if req.Strategy == "" {
		req.Strategy = onboarding.StrategyParallel
	}
	if !req.Strategy.Valid() {
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidRequest, req.Strategy)
	}

	// Capacity is checked before the job is persisted; a rejected submit
	// leaves no orphaned record in the store.
	s.mu.Lock()
	if len(s.queue) >= s.cfg.QueueSize {
		s.mu.Unlock()
		return "", ErrQueueFull
	}
	s.mu.Unlock()

	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	job := onboarding.Job{
		ID:            id,
		SourceURL:     req.SourceURL,
		CompetitorURL: req.CompetitorURL,
		Priority:      req.Priority,
		Strategy:      req.Strategy,
		Status:        onboarding.JobStatusPending,
		Created:       s.clock.Now(),
		Nodes:         pendingNodes(),
	}
	if req.CompetitorURL != "" {
		job.CompetitorNodes = pendingNodes()
	}
	if err := s.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	s.mu.Lock()
	s.nextOrder++
	s.queue = append(s.queue, queuedJob{id: id, priority: req.Priority, order: s.nextOrder})
	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].priority.Rank() != s.queue[j].priority.Rank() {
			return s.queue[i].priority.Rank() < s.queue[j].priority.Rank()
		}
		return s.queue[i].order < s.queue[j].order
	})
	s.mu.Unlock()

	s.signal()
	return id, nil
}

// Status returns the job's read-side snapshot.
func (s *Scheduler) Status(ctx context.Context, id string) (onboarding.JobSnapshot, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return onboarding.JobSnapshot{}, err
	}
	return job.Snapshot(), nil
}

// Events returns the job's progress events after sinceSeq.
func (s *Scheduler) Events(ctx context.Context, id string, sinceSeq int64) ([]onboarding.ProgressEvent, error) {
	return s.store.ListEvents(ctx, id, sinceSeq)
}

// Result returns the merged record once the job completed.
func (s *Scheduler) Result(ctx context.Context, id string) (onboarding.MergedRecord, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return onboarding.MergedRecord{}, err
	}
	if job.Status != onboarding.JobStatusCompleted || job.Record == nil {
		return onboarding.MergedRecord{}, onboarding.ErrNotReady
	}
	return *job.Record, nil
}

// Comparison returns the competitor diff once the job completed.
func (s *Scheduler) Comparison(ctx context.Context, id string) (onboarding.ComparisonReport, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return onboarding.ComparisonReport{}, err
	}
	if !job.Status.Terminal() {
		return onboarding.ComparisonReport{}, onboarding.ErrNotReady
	}
	if job.Comparison == nil {
		return onboarding.ComparisonReport{}, onboarding.ErrNotFound
	}
	return *job.Comparison, nil
}

// Cancel stops a queued or running job. Cancelling a terminal job is a
// no-op.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	s.mu.Lock()
	dequeued := false
	for i, q := range s.queue {
		if q.id == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			dequeued = true
			break
		}
	}
	cancel := s.cancels[id]
	s.mu.Unlock()

	if dequeued {
		err := s.store.Update(ctx, id, func(j *onboarding.Job) error {
			j.Status = onboarding.JobStatusCancelled
			completed := s.clock.Now()
			j.Completed = &completed
			return nil
		})
		if err != nil {
			return err
		}
		s.recorder.Record(ctx, id, onboarding.ProgressEvent{Type: onboarding.EventJobCancelled})
		return nil
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// Retry re-queues a terminal job's failed nodes, preserving completed
// outputs. The sealed event log stays sealed; retried runs report no new
// events.
func (s *Scheduler) Retry(ctx context.Context, id string) error {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return onboarding.ErrNotReady
	}

	s.mu.Lock()
	if len(s.queue) >= s.cfg.QueueSize {
		s.mu.Unlock()
		return ErrQueueFull
	}
	s.mu.Unlock()

	err = s.store.Update(ctx, id, func(j *onboarding.Job) error {
		resetFailed(j.Nodes)
		resetFailed(j.CompetitorNodes)
		j.Status = onboarding.JobStatusPending
		j.Completed = nil
		j.ErrorText = ""
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.nextOrder++
	s.queue = append(s.queue, queuedJob{id: id, priority: job.Priority, order: s.nextOrder})
	s.mu.Unlock()
	s.signal()
	return nil
}

func resetFailed(nodes map[onboarding.Category]onboarding.NodeRun) {
	for cat, run := range nodes {
		if run.Status == onboarding.NodeStatusFailed {
			nodes[cat] = onboarding.NodeRun{Category: cat, Status: onboarding.NodeStatusPending}
		}
	}
}

func pendingNodes() map[onboarding.Category]onboarding.NodeRun {
	nodes := make(map[onboarding.Category]onboarding.NodeRun, 4)
	for _, cat := range onboarding.Categories() {
		nodes[cat] = onboarding.NodeRun{Category: cat, Status: onboarding.NodeStatusPending}
	}
	return nodes
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) admitLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.rootCtx.Done():
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			if !s.jobSem.TryAcquire(1) {
				s.mu.Unlock()
				break
			}
			next := s.queue[0]
			s.queue = s.queue[1:]
			jobCtx, cancel := context.WithCancel(s.rootCtx)
			s.cancels[next.id] = cancel
			s.mu.Unlock()

			s.wg.Add(1)
			go func(id string, ctx context.Context, cancel context.CancelFunc) {
				defer s.wg.Done()
				defer s.jobSem.Release(1)
				defer s.signal()
				defer func() {
					cancel()
					s.mu.Lock()
					delete(s.cancels, id)
					s.mu.Unlock()
				}()
				s.runJob(ctx, id)
			}(next.id, jobCtx, cancel)
		}
	}
}

// runJob drives one job through its strategy, merges the surviving outputs,
// and finalizes status. The background context carries store writes through
// even when the job context is cancelled.
func (s *Scheduler) runJob(ctx context.Context, id string) {
	job, err := s.store.Get(context.Background(), id)
	if err != nil {
		s.logger.Error("load admitted job", zap.String("job_id", id), zap.Error(err))
		return
	}

	started := s.clock.Now()
	err = s.store.Update(context.Background(), id, func(j *onboarding.Job) error {
		j.Status = onboarding.JobStatusInProgress
		if j.Started == nil {
			j.Started = &started
		}
		return nil
	})
	if err != nil {
		s.logger.Error("mark job started", zap.String("job_id", id), zap.Error(err))
		return
	}
	s.recorder.Record(context.Background(), id, onboarding.ProgressEvent{Type: onboarding.EventJobStarted})

	s.runStrategy(ctx, id, job.Strategy, job.SourceURL, false)
	if job.CompetitorURL != "" && ctx.Err() == nil {
		s.runStrategy(ctx, id, job.Strategy, job.CompetitorURL, true)
	}

	s.finalize(ctx, id)
}

// runStrategy executes the four nodes of one pipeline (source or
// competitor) under the job's strategy.
func (s *Scheduler) runStrategy(ctx context.Context, id string, strategy onboarding.Strategy, seedURL string, competitor bool) {
	switch strategy {
	case onboarding.StrategySequential:
		for _, cat := range onboarding.Categories() {
			s.runNode(ctx, id, cat, seedURL, competitor)
		}
	case onboarding.StrategyHybrid:
		var wg sync.WaitGroup
		for _, cat := range []onboarding.Category{
			onboarding.CategoryBasicInfo,
			onboarding.CategoryDescription,
			onboarding.CategoryConfiguration,
		} {
			wg.Add(1)
			go func(cat onboarding.Category) {
				defer wg.Done()
				s.runNode(ctx, id, cat, seedURL, competitor)
			}(cat)
		}
		wg.Wait()
		s.runNode(ctx, id, onboarding.CategoryTenancy, seedURL, competitor)
	default: // parallel
		var wg sync.WaitGroup
		configDone := make(chan struct{})
		for _, cat := range []onboarding.Category{
			onboarding.CategoryBasicInfo,
			onboarding.CategoryDescription,
		} {
			wg.Add(1)
			go func(cat onboarding.Category) {
				defer wg.Done()
				s.runNode(ctx, id, cat, seedURL, competitor)
			}(cat)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(configDone)
			s.runNode(ctx, id, onboarding.CategoryConfiguration, seedURL, competitor)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-configDone
			s.runNode(ctx, id, onboarding.CategoryTenancy, seedURL, competitor)
		}()
		wg.Wait()
	}
}

// runNode executes one category under the global node semaphore and records
// its outcome. Skips nodes that are already terminal (retried jobs keep
// their completed outputs).
func (s *Scheduler) runNode(ctx context.Context, id string, category onboarding.Category, seedURL string, competitor bool) {
	job, err := s.store.Get(context.Background(), id)
	if err != nil {
		return
	}
	if run, ok := nodesOf(&job, competitor)[category]; ok && run.Status.Terminal() {
		return
	}

	if err := s.nodeSem.Acquire(ctx, 1); err != nil {
		s.markNodeFailed(id, category, competitor, 0, onboarding.ErrCancelled)
		return
	}
	defer s.nodeSem.Release(1)

	opts := node.Options{}
	if category == onboarding.CategoryTenancy {
		opts.Hints, opts.Degraded = s.tenancyHints(id, competitor)
	}
	if !competitor {
		opts.OnRetry = func(attempt int, wait time.Duration, err error) {
			s.recorder.Record(context.Background(), id, onboarding.ProgressEvent{
				Type:     onboarding.EventNodeRetrying,
				Category: category,
				Message:  fmt.Sprintf("attempt %d failed, retrying in %s: %v", attempt, wait, err),
			})
			s.updateNode(id, category, competitor, func(run *onboarding.NodeRun) {
				run.Status = onboarding.NodeStatusRetrying
				run.Attempts = attempt
			})
		}
	}

	nodeStart := s.clock.Now()
	s.updateNode(id, category, competitor, func(run *onboarding.NodeRun) {
		run.Status = onboarding.NodeStatusRunning
		run.Started = &nodeStart
	})
	if !competitor {
		s.recorder.Record(context.Background(), id, onboarding.ProgressEvent{
			Type:     onboarding.EventNodeStarted,
			Category: category,
		})
	}

	res, err := s.runner.Run(ctx, seedURL, category, opts)
	if err != nil {
		s.markNodeFailed(id, category, competitor, res.Attempts, err)
		return
	}

	ended := s.clock.Now()
	s.updateNode(id, category, competitor, func(run *onboarding.NodeRun) {
		run.Status = onboarding.NodeStatusCompleted
		run.Attempts = res.Attempts
		run.Ended = &ended
		run.Output = res.Payload
		run.Confidence = res.Confidence
		run.Completeness = res.Completeness
		run.Relevance = res.Relevance
		run.Degraded = res.Degraded
		run.ErrorText = ""
	})
	s.advanceProgress(id)
	if !competitor {
		s.recorder.Record(context.Background(), id, onboarding.ProgressEvent{
			Type:     onboarding.EventNodeCompleted,
			Category: category,
		})
	}
}

// tenancyHints reads the configuration node's output for the tenancy run.
// A failed configuration node degrades the tenancy run instead of blocking
// it.
func (s *Scheduler) tenancyHints(id string, competitor bool) (onboarding.ExtractionHints, bool) {
	job, err := s.store.Get(context.Background(), id)
	if err != nil {
		return onboarding.ExtractionHints{}, true
	}
	run, ok := nodesOf(&job, competitor)[onboarding.CategoryConfiguration]
	if !ok || run.Status != onboarding.NodeStatusCompleted || run.Output == nil || run.Output.Configuration == nil {
		return onboarding.ExtractionHints{}, true
	}
	hints := onboarding.ExtractionHints{}
	for _, cfg := range run.Output.Configuration.Configurations {
		hints.ConfigurationIDs = append(hints.ConfigurationIDs, cfg.ConfigurationID)
		hints.ConfigurationNames = append(hints.ConfigurationNames, cfg.Name)
	}
	return hints, false
}

func (s *Scheduler) markNodeFailed(id string, category onboarding.Category, competitor bool, attempts int, cause error) {
	ended := s.clock.Now()
	text := cause.Error()
	if onboarding.IsCancelled(cause) {
		text = "cancelled: " + text
	}
	s.updateNode(id, category, competitor, func(run *onboarding.NodeRun) {
		run.Status = onboarding.NodeStatusFailed
		if attempts > run.Attempts {
			run.Attempts = attempts
		}
		run.Ended = &ended
		run.ErrorText = text
	})
	s.advanceProgress(id)
	if !competitor {
		s.recorder.Record(context.Background(), id, onboarding.ProgressEvent{
			Type:     onboarding.EventNodeFailed,
			Category: category,
			Message:  text,
		})
	}
}

func (s *Scheduler) updateNode(id string, category onboarding.Category, competitor bool, fn func(*onboarding.NodeRun)) {
	err := s.store.Update(context.Background(), id, func(j *onboarding.Job) error {
		nodes := nodesOf(j, competitor)
		run := nodes[category]
		run.Category = category
		fn(&run)
		nodes[category] = run
		return nil
	})
	if err != nil {
		s.logger.Error("update node state",
			zap.String("job_id", id),
			zap.String("category", string(category)),
			zap.Error(err),
		)
	}
}

// advanceProgress recomputes the job's progress from terminal source nodes.
// Progress never moves backwards.
func (s *Scheduler) advanceProgress(id string) {
	err := s.store.Update(context.Background(), id, func(j *onboarding.Job) error {
		var done float64
		for cat, run := range j.Nodes {
			if run.Status.Terminal() {
				done += progressWeights[cat]
			}
		}
		pct := done * 100
		if pct > j.Progress {
			j.Progress = pct
		}
		return nil
	})
	if err != nil {
		s.logger.Error("update job progress", zap.String("job_id", id), zap.Error(err))
	}
}

// finalize merges node outputs, scores quality, diffs the competitor, and
// writes the terminal status: cancelled whenever the job context ended,
// completed when at least one source node completed, failed otherwise.
// Partial outputs of a cancelled job are kept on the nodes but never merged;
// Retry picks them up.
func (s *Scheduler) finalize(ctx context.Context, id string) {
	job, err := s.store.Get(context.Background(), id)
	if err != nil {
		s.logger.Error("load job for finalize", zap.String("job_id", id), zap.Error(err))
		return
	}

	cancelled := ctx.Err() != nil
	completedNodes := 0
	for _, run := range job.Nodes {
		if run.Status == onboarding.NodeStatusCompleted {
			completedNodes++
		}
	}

	status := onboarding.JobStatusFailed
	eventType := onboarding.EventJobFailed
	var record *onboarding.MergedRecord
	var quality *onboarding.QualityReport
	var competitorRecord *onboarding.MergedRecord
	var comparison *onboarding.ComparisonReport
	errorText := ""

	switch {
	case cancelled:
		status = onboarding.JobStatusCancelled
		eventType = onboarding.EventJobCancelled
		errorText = "cancelled"
	case completedNodes > 0:
		status = onboarding.JobStatusCompleted
		eventType = onboarding.EventJobCompleted
		merged := merge.Record(job.SourceURL, job.Nodes)
		record = &merged
		scored := merge.Score(merged, job.Nodes)
		quality = &scored
		if job.CompetitorURL != "" {
			compMerged := merge.Record(job.CompetitorURL, job.CompetitorNodes)
			competitorRecord = &compMerged
			diff := merge.Compare(merged, compMerged)
			comparison = &diff
		}
	default:
		errorText = "all extraction nodes failed"
	}

	completed := s.clock.Now()
	err = s.store.Update(context.Background(), id, func(j *onboarding.Job) error {
		j.Status = status
		j.Completed = &completed
		j.Record = record
		j.Quality = quality
		j.CompetitorRecord = competitorRecord
		j.Comparison = comparison
		j.ErrorText = errorText
		if status == onboarding.JobStatusCompleted {
			j.Progress = 100
		}
		return nil
	})
	if err != nil {
		s.logger.Error("finalize job", zap.String("job_id", id), zap.Error(err))
		return
	}
	s.recorder.Record(context.Background(), id, onboarding.ProgressEvent{
		Type:    eventType,
		Message: errorText,
	})
	s.logger.Info("job finished",
		zap.String("job_id", id),
		zap.String("status", string(status)),
		zap.Int("completed_nodes", completedNodes),
	)
}

func nodesOf(job *onboarding.Job, competitor bool) map[onboarding.Category]onboarding.NodeRun {
	if competitor {
		if job.CompetitorNodes == nil {
			job.CompetitorNodes = make(map[onboarding.Category]onboarding.NodeRun)
		}
		return job.CompetitorNodes
	}
	if job.Nodes == nil {
		job.Nodes = make(map[onboarding.Category]onboarding.NodeRun)
	}
	return job.Nodes
}
