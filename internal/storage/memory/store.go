// Package memory provides the in-memory job store used for development and
// testing. Jobs are isolated by per-job locks so independent jobs never
// contend.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/roomsage/onboarder/internal/onboarding"
)

// Store implements onboarding.JobStore with per-job locking: a global lock
// guards only the job table, while each job carries its own mutex serializing
// mutation and event appends for that job alone.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobEntry
}

type jobEntry struct {
	mu      sync.Mutex
	job     onboarding.Job
	events  []onboarding.ProgressEvent
	nextSeq int64
	sealed  bool
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobEntry)}
}

// Create inserts a new job. Duplicate IDs are rejected.
func (s *Store) Create(_ context.Context, job onboarding.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return onboarding.ErrJobExists
	}
	s.jobs[job.ID] = &jobEntry{job: cloneJob(job), nextSeq: 1}
	return nil
}

// Get returns a copy of the job; callers may not reach the stored state
// through it.
func (s *Store) Get(_ context.Context, id string) (onboarding.Job, error) {
	entry, err := s.entry(id)
	if err != nil {
		return onboarding.Job{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneJob(entry.job), nil
}

// Update applies fn to the stored job under the job's writer lock. The
// mutation is discarded when fn errors.
func (s *Store) Update(_ context.Context, id string, fn func(*onboarding.Job) error) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	working := cloneJob(entry.job)
	if err := fn(&working); err != nil {
		return err
	}
	entry.job = working
	return nil
}

// AppendEvent assigns the job's next sequence number and appends the event.
// The log seals at the first terminal event.
func (s *Store) AppendEvent(_ context.Context, id string, evt onboarding.ProgressEvent) (onboarding.ProgressEvent, error) {
	entry, err := s.entry(id)
	if err != nil {
		return onboarding.ProgressEvent{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.sealed {
		return onboarding.ProgressEvent{}, onboarding.ErrLogSealed
	}
	evt.JobID = id
	evt.Seq = entry.nextSeq
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	entry.nextSeq++
	entry.events = append(entry.events, evt)
	if evt.Type.TerminalEvent() {
		entry.sealed = true
	}
	return evt, nil
}

// ListEvents returns events with Seq > sinceSeq in ascending order.
func (s *Store) ListEvents(_ context.Context, id string, sinceSeq int64) ([]onboarding.ProgressEvent, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := make([]onboarding.ProgressEvent, 0, len(entry.events))
	for _, evt := range entry.events {
		if evt.Seq > sinceSeq {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (s *Store) entry(id string) (*jobEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.jobs[id]
	if !ok {
		return nil, onboarding.ErrNotFound
	}
	return entry, nil
}

// cloneJob copies a job deeply enough that reads and pending mutations never
// alias stored state.
func cloneJob(job onboarding.Job) onboarding.Job {
	out := job
	out.Nodes = cloneNodes(job.Nodes)
	out.CompetitorNodes = cloneNodes(job.CompetitorNodes)
	if job.Started != nil {
		started := *job.Started
		out.Started = &started
	}
	if job.Completed != nil {
		completed := *job.Completed
		out.Completed = &completed
	}
	out.Record = cloneRecord(job.Record)
	out.CompetitorRecord = cloneRecord(job.CompetitorRecord)
	out.Comparison = cloneComparison(job.Comparison)
	if job.Quality != nil {
		quality := *job.Quality
		out.Quality = &quality
	}
	return out
}

func cloneRecord(record *onboarding.MergedRecord) *onboarding.MergedRecord {
	if record == nil {
		return nil
	}
	out := *record
	out.Features = append([]string(nil), record.Features...)
	out.PropertyRules = append([]string(nil), record.PropertyRules...)
	out.SafetyAndSecurity = append([]string(nil), record.SafetyAndSecurity...)
	out.Description.Highlights = append(onboarding.StringList(nil), record.Description.Highlights...)
	if record.Configurations != nil {
		out.Configurations = make([]onboarding.MergedConfiguration, len(record.Configurations))
		for i, cfg := range record.Configurations {
			cloned := cfg
			cloned.Features = append(onboarding.StringList(nil), cfg.Features...)
			cloned.Tenancies = append([]onboarding.TenancyOption(nil), cfg.Tenancies...)
			out.Configurations[i] = cloned
		}
	}
	out.OrphanTenancies = append([]onboarding.TenancyOption(nil), record.OrphanTenancies...)
	out.Conflicts = append([]onboarding.ValueConflict(nil), record.Conflicts...)
	return &out
}

func cloneComparison(report *onboarding.ComparisonReport) *onboarding.ComparisonReport {
	if report == nil {
		return nil
	}
	out := *report
	out.Rows = append([]onboarding.ComparisonRow(nil), report.Rows...)
	out.OnlyInSource = append([]string(nil), report.OnlyInSource...)
	out.OnlyInCompetitor = append([]string(nil), report.OnlyInCompetitor...)
	return &out
}

func clonePayload(payload *onboarding.NodePayload) *onboarding.NodePayload {
	if payload == nil {
		return nil
	}
	out := onboarding.NodePayload{}
	if payload.BasicInfo != nil {
		info := *payload.BasicInfo
		info.Features = append(onboarding.StringList(nil), payload.BasicInfo.Features...)
		info.PropertyRules = append(onboarding.StringList(nil), payload.BasicInfo.PropertyRules...)
		info.SafetyAndSecurity = append(onboarding.StringList(nil), payload.BasicInfo.SafetyAndSecurity...)
		out.BasicInfo = &info
	}
	if payload.Description != nil {
		desc := *payload.Description
		desc.Highlights = append(onboarding.StringList(nil), payload.Description.Highlights...)
		out.Description = &desc
	}
	if payload.Configuration != nil {
		cfgs := onboarding.ConfigurationPayload{}
		if payload.Configuration.Configurations != nil {
			cfgs.Configurations = make([]onboarding.Configuration, len(payload.Configuration.Configurations))
			for i, cfg := range payload.Configuration.Configurations {
				cloned := cfg
				cloned.Features = append(onboarding.StringList(nil), cfg.Features...)
				cfgs.Configurations[i] = cloned
			}
		}
		out.Configuration = &cfgs
	}
	if payload.Tenancy != nil {
		out.Tenancy = &onboarding.TenancyPayload{
			Tenancies: append([]onboarding.TenancyOption(nil), payload.Tenancy.Tenancies...),
		}
	}
	return &out
}

func cloneNodes(nodes map[onboarding.Category]onboarding.NodeRun) map[onboarding.Category]onboarding.NodeRun {
	if nodes == nil {
		return nil
	}
	out := make(map[onboarding.Category]onboarding.NodeRun, len(nodes))
	for cat, run := range nodes {
		cloned := run
		if run.Started != nil {
			started := *run.Started
			cloned.Started = &started
		}
		if run.Ended != nil {
			ended := *run.Ended
			cloned.Ended = &ended
		}
		cloned.Output = clonePayload(run.Output)
		out[cat] = cloned
	}
	return out
}
