package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roomsage/onboarder/internal/node"
	"github.com/roomsage/onboarder/internal/onboarding"
	"github.com/roomsage/onboarder/internal/progress"
	"github.com/roomsage/onboarder/internal/storage/memory"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return string(rune('a'+g.n-1)) + "-job", nil
}

// fakeRunner resolves each category from a result table and records the
// order categories started in.
type fakeRunner struct {
	mu      sync.Mutex
	results map[onboarding.Category]fakeOutcome
	order   []onboarding.Category
	hints   map[onboarding.Category]onboarding.ExtractionHints
	block   chan struct{}
	blocks  map[onboarding.Category]chan struct{}
}

type fakeOutcome struct {
	payload  *onboarding.NodePayload
	err      error
	degraded bool
}

func (r *fakeRunner) Run(ctx context.Context, seedURL string, category onboarding.Category, opts node.Options) (node.Result, error) {
	r.mu.Lock()
	r.order = append(r.order, category)
	if r.hints == nil {
		r.hints = make(map[onboarding.Category]onboarding.ExtractionHints)
	}
	r.hints[category] = opts.Hints
	block := r.block
	if ch, ok := r.blocks[category]; ok {
		block = ch
	}
	outcome := r.results[category]
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return node.Result{Category: category, Attempts: 1}, onboarding.ErrCancelled
		}
	}
	if ctx.Err() != nil {
		return node.Result{Category: category, Attempts: 1}, onboarding.ErrCancelled
	}

	if outcome.err != nil {
		return node.Result{Category: category, Attempts: 1}, outcome.err
	}
	return node.Result{
		Category:     category,
		Payload:      outcome.payload,
		Confidence:   0.9,
		Completeness: 0.8,
		Relevance:    0.7,
		Attempts:     1,
		Degraded:     opts.Degraded || outcome.degraded,
	}, nil
}

func (r *fakeRunner) started() []onboarding.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]onboarding.Category, len(r.order))
	copy(out, r.order)
	return out
}

func allCompleted() map[onboarding.Category]fakeOutcome {
	return map[onboarding.Category]fakeOutcome{
		onboarding.CategoryBasicInfo: {payload: &onboarding.NodePayload{BasicInfo: &onboarding.BasicInfoPayload{
			Name: "Lumis House",
		}}},
		onboarding.CategoryDescription: {payload: &onboarding.NodePayload{Description: &onboarding.DescriptionPayload{
			Summary: "Modern studios",
		}}},
		onboarding.CategoryConfiguration: {payload: &onboarding.NodePayload{Configuration: &onboarding.ConfigurationPayload{
			Configurations: []onboarding.Configuration{{
				ConfigurationID: "cfg-studio-plus",
				Name:            "Studio Plus",
				PriceMin:        onboarding.Money{Amount: 210, Known: true},
			}},
		}}},
		onboarding.CategoryTenancy: {payload: &onboarding.NodePayload{Tenancy: &onboarding.TenancyPayload{
			Tenancies: []onboarding.TenancyOption{{
				ConfigurationID: "cfg-studio-plus",
				Duration:        onboarding.Stay{Weeks: 51, Known: true},
				PricePerWeek:    onboarding.Money{Amount: 210, Known: true},
			}},
		}}},
	}
}

func newTestScheduler(t *testing.T, runner NodeRunner, cfg Config) (*Scheduler, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	recorder := progress.NewRecorder(store, systemClock{}, nil)
	sched := New(store, runner, recorder, systemClock{}, &seqIDs{}, cfg, nil)
	sched.Start(context.Background())
	t.Cleanup(sched.Close)
	return sched, store
}

func waitTerminal(t *testing.T, sched *Scheduler, id string) onboarding.JobSnapshot {
	t.Helper()
	var snap onboarding.JobSnapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = sched.Status(context.Background(), id)
		return err == nil && snap.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return snap
}

func TestJobCompletesWithMergedResult(t *testing.T) {
	runner := &fakeRunner{results: allCompleted()}
	sched, _ := newTestScheduler(t, runner, Config{})

	id, err := sched.Submit(context.Background(), SubmitRequest{
		SourceURL: "https://lumishouse.example",
		Strategy:  onboarding.StrategyParallel,
	})
	require.NoError(t, err)

	snap := waitTerminal(t, sched, id)
	require.Equal(t, onboarding.JobStatusCompleted, snap.Status)
	require.InDelta(t, 100, snap.Progress, 0.001)
	require.NotNil(t, snap.Quality)

	record, err := sched.Result(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Lumis House", record.Name)
	require.Len(t, record.Configurations, 1)
	require.Len(t, record.Configurations[0].Tenancies, 1)
}

func TestTenancyWaitsForConfigurationHints(t *testing.T) {
	runner := &fakeRunner{results: allCompleted()}
	sched, _ := newTestScheduler(t, runner, Config{})

	id, err := sched.Submit(context.Background(), SubmitRequest{
		SourceURL: "https://lumishouse.example",
		Strategy:  onboarding.StrategyParallel,
	})
	require.NoError(t, err)
	waitTerminal(t, sched, id)

	order := runner.started()
	configIdx, tenancyIdx := -1, -1
	for i, cat := range order {
		switch cat {
		case onboarding.CategoryConfiguration:
			configIdx = i
		case onboarding.CategoryTenancy:
			tenancyIdx = i
		}
	}
	require.Greater(t, tenancyIdx, configIdx)
	require.Equal(t, []string{"cfg-studio-plus"}, runner.hints[onboarding.CategoryTenancy].ConfigurationIDs)
}

func TestSequentialStrategyRunsInOrder(t *testing.T) {
	runner := &fakeRunner{results: allCompleted()}
	sched, _ := newTestScheduler(t, runner, Config{})

	id, err := sched.Submit(context.Background(), SubmitRequest{
		SourceURL: "https://lumishouse.example",
		Strategy:  onboarding.StrategySequential,
	})
	require.NoError(t, err)
	waitTerminal(t, sched, id)

	require.Equal(t, onboarding.Categories(), runner.started())
}

func TestDegradedTenancyAfterConfigurationFailure(t *testing.T) {
	results := allCompleted()
	results[onboarding.CategoryConfiguration] = fakeOutcome{
		err: onboarding.Fatal("extract", errors.New("schema hard failure")),
	}
	runner := &fakeRunner{results: results}
	sched, _ := newTestScheduler(t, runner, Config{})

	id, err := sched.Submit(context.Background(), SubmitRequest{
		SourceURL: "https://lumishouse.example",
		Strategy:  onboarding.StrategyParallel,
	})
	require.NoError(t, err)

	snap := waitTerminal(t, sched, id)
	require.Equal(t, onboarding.JobStatusCompleted, snap.Status)

	var tenancy onboarding.NodeSnapshot
	for _, n := range snap.Nodes {
		if n.Category == onboarding.CategoryTenancy {
			tenancy = n
		}
	}
	require.Equal(t, onboarding.NodeStatusCompleted, tenancy.Status)
	require.True(t, tenancy.Degraded)

	record, err := sched.Result(context.Background(), id)
	require.NoError(t, err)
	require.Empty(t, record.Configurations)
	require.Len(t, record.OrphanTenancies, 1)
}

func TestJobFailsWhenAllNodesFail(t *testing.T) {
	failure := fakeOutcome{err: onboarding.Fatal("fetch", errors.New("unreachable host"))}
	runner := &fakeRunner{results: map[onboarding.Category]fakeOutcome{
		onboarding.CategoryBasicInfo:     failure,
		onboarding.CategoryDescription:   failure,
		onboarding.CategoryConfiguration: failure,
		onboarding.CategoryTenancy:       failure,
	}}
	sched, _ := newTestScheduler(t, runner, Config{})

	id, err := sched.Submit(context.Background(), SubmitRequest{
		SourceURL: "https://unreachable.example",
	})
	require.NoError(t, err)

	snap := waitTerminal(t, sched, id)
	require.Equal(t, onboarding.JobStatusFailed, snap.Status)

	_, err = sched.Result(context.Background(), id)
	require.ErrorIs(t, err, onboarding.ErrNotReady)
}

func TestEventsStreamInOrder(t *testing.T) {
	runner := &fakeRunner{results: allCompleted()}
	sched, _ := newTestScheduler(t, runner, Config{})

	id, err := sched.Submit(context.Background(), SubmitRequest{
		SourceURL: "https://lumishouse.example",
		Strategy:  onboarding.StrategySequential,
	})
	require.NoError(t, err)
	waitTerminal(t, sched, id)

	events, err := sched.Events(context.Background(), id, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, onboarding.EventJobStarted, events[0].Type)
	require.Equal(t, onboarding.EventJobCompleted, events[len(events)-1].Type)
	for i := 1; i < len(events); i++ {
		require.Greater(t, events[i].Seq, events[i-1].Seq)
	}
}

func TestCancelRunningJob(t *testing.T) {
	runner := &fakeRunner{results: allCompleted(), block: make(chan struct{})}
	sched, _ := newTestScheduler(t, runner, Config{})

	id, err := sched.Submit(context.Background(), SubmitRequest{
		SourceURL: "https://lumishouse.example",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := sched.Status(context.Background(), id)
		return err == nil && snap.Status == onboarding.JobStatusInProgress
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, sched.Cancel(context.Background(), id))

	snap := waitTerminal(t, sched, id)
	require.Equal(t, onboarding.JobStatusCancelled, snap.Status)
}

func TestRetryReRunsOnlyFailedNodes(t *testing.T) {
	results := allCompleted()
	results[onboarding.CategoryDescription] = fakeOutcome{
		err: onboarding.Fatal("extract", errors.New("empty context")),
	}
	runner := &fakeRunner{results: results}
	sched, _ := newTestScheduler(t, runner, Config{})

	id, err := sched.Submit(context.Background(), SubmitRequest{
		SourceURL: "https://lumishouse.example",
		Strategy:  onboarding.StrategySequential,
	})
	require.NoError(t, err)
	waitTerminal(t, sched, id)

	// Completed with a failed description node; heal the fake and retry.
	runner.mu.Lock()
	runner.results[onboarding.CategoryDescription] = fakeOutcome{
		payload: &onboarding.NodePayload{Description: &onboarding.DescriptionPayload{Summary: "ok"}},
	}
	before := len(runner.order)
	runner.mu.Unlock()

	require.NoError(t, sched.Retry(context.Background(), id))

	require.Eventually(t, func() bool {
		snap, err := sched.Status(context.Background(), id)
		if err != nil || !snap.Status.Terminal() {
			return false
		}
		for _, n := range snap.Nodes {
			if n.Category == onboarding.CategoryDescription {
				return n.Status == onboarding.NodeStatusCompleted
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	// Only the failed node ran again.
	require.Equal(t, before+1, len(runner.started()))
}

func TestSubmitValidation(t *testing.T) {
	sched, _ := newTestScheduler(t, &fakeRunner{results: allCompleted()}, Config{})

	_, err := sched.Submit(context.Background(), SubmitRequest{})
	require.Error(t, err)

	_, err = sched.Submit(context.Background(), SubmitRequest{
		SourceURL: "https://lumishouse.example",
		Priority:  "asap",
	})
	require.Error(t, err)

	_, err = sched.Submit(context.Background(), SubmitRequest{
		SourceURL: "https://lumishouse.example",
		Strategy:  "turbo",
	})
	require.Error(t, err)
}

func TestCompetitorComparison(t *testing.T) {
	runner := &fakeRunner{results: allCompleted()}
	sched, _ := newTestScheduler(t, runner, Config{})

	id, err := sched.Submit(context.Background(), SubmitRequest{
		SourceURL:     "https://lumishouse.example",
		CompetitorURL: "https://rival.example",
		Strategy:      onboarding.StrategyHybrid,
	})
	require.NoError(t, err)
	waitTerminal(t, sched, id)

	report, err := sched.Comparison(context.Background(), id)
	require.NoError(t, err)
	// Identical fake outputs on both sides match fully.
	require.InDelta(t, 1.0, report.ConfigurationMatchRate, 0.001)
	require.Len(t, report.Rows, 1)
}

func TestCancelAfterPartialCompletion(t *testing.T) {
	blocked := make(chan struct{})
	runner := &fakeRunner{
		results: allCompleted(),
		blocks: map[onboarding.Category]chan struct{}{
			onboarding.CategoryDescription:   blocked,
			onboarding.CategoryConfiguration: blocked,
		},
	}
	sched, _ := newTestScheduler(t, runner, Config{})

	id, err := sched.Submit(context.Background(), SubmitRequest{
		SourceURL: "https://lumishouse.example",
		Strategy:  onboarding.StrategyParallel,
	})
	require.NoError(t, err)

	// Wait until basic_info landed while the other nodes hang.
	require.Eventually(t, func() bool {
		snap, err := sched.Status(context.Background(), id)
		if err != nil {
			return false
		}
		for _, n := range snap.Nodes {
			if n.Category == onboarding.CategoryBasicInfo {
				return n.Status == onboarding.NodeStatusCompleted
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, sched.Cancel(context.Background(), id))

	snap := waitTerminal(t, sched, id)
	require.Equal(t, onboarding.JobStatusCancelled, snap.Status)

	_, err = sched.Result(context.Background(), id)
	require.ErrorIs(t, err, onboarding.ErrNotReady)

	events, err := sched.Events(context.Background(), id, 0)
	require.NoError(t, err)
	require.Equal(t, onboarding.EventJobCancelled, events[len(events)-1].Type)
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	store := memory.NewStore()
	recorder := progress.NewRecorder(store, systemClock{}, nil)
	// Never started, so nothing drains the queue.
	sched := New(store, &fakeRunner{results: allCompleted()}, recorder, systemClock{}, &seqIDs{}, Config{QueueSize: 1}, nil)

	_, err := sched.Submit(context.Background(), SubmitRequest{SourceURL: "https://one.example"})
	require.NoError(t, err)

	_, err = sched.Submit(context.Background(), SubmitRequest{SourceURL: "https://two.example"})
	require.ErrorIs(t, err, ErrQueueFull)

	// The rejected submission persisted nothing.
	_, err = store.Get(context.Background(), "b-job")
	require.ErrorIs(t, err, onboarding.ErrNotFound)
}

func TestRetryRejectsWhenQueueFull(t *testing.T) {
	store := memory.NewStore()
	recorder := progress.NewRecorder(store, systemClock{}, nil)
	sched := New(store, &fakeRunner{results: allCompleted()}, recorder, systemClock{}, &seqIDs{}, Config{QueueSize: 1}, nil)

	failed := onboarding.Job{
		ID:        "failed-job",
		SourceURL: "https://old.example",
		Priority:  onboarding.PriorityNormal,
		Strategy:  onboarding.StrategyParallel,
		Status:    onboarding.JobStatusFailed,
		Created:   time.Now().UTC(),
		Nodes:     pendingNodes(),
	}
	require.NoError(t, store.Create(context.Background(), failed))

	_, err := sched.Submit(context.Background(), SubmitRequest{SourceURL: "https://one.example"})
	require.NoError(t, err)

	require.ErrorIs(t, sched.Retry(context.Background(), "failed-job"), ErrQueueFull)

	// The rejected retry left the job untouched.
	job, err := store.Get(context.Background(), "failed-job")
	require.NoError(t, err)
	require.Equal(t, onboarding.JobStatusFailed, job.Status)
}
