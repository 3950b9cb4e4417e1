package onboarding

import (
	"net/http"
	"time"
)

// Category identifies one of the four fixed extraction stages.
type Category string

// Extraction categories in canonical execution order.
const (
	CategoryBasicInfo     Category = "basic_info"
	CategoryDescription   Category = "description"
	CategoryConfiguration Category = "configuration"
	CategoryTenancy       Category = "tenancy"
)

// Categories returns the four categories in canonical order. The tenancy
// category depends on the configuration category's terminal state.
func Categories() []Category {
	return []Category{CategoryBasicInfo, CategoryDescription, CategoryConfiguration, CategoryTenancy}
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryBasicInfo, CategoryDescription, CategoryConfiguration, CategoryTenancy:
		return true
	default:
		return false
	}
}

// Priority orders queued jobs; it never preempts running nodes.
type Priority string

// Job priorities from most to least urgent.
const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank maps a priority to its queue position weight; lower runs first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	default:
		return false
	}
}

// Strategy selects how the four category nodes of a job are ordered.
type Strategy string

// Execution strategies.
const (
	StrategyParallel   Strategy = "parallel"
	StrategySequential Strategy = "sequential"
	StrategyHybrid     Strategy = "hybrid"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyParallel, StrategySequential, StrategyHybrid:
		return true
	default:
		return false
	}
}

// JobStatus represents the lifecycle state of an onboarding job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is a final one.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// NodeStatus represents the lifecycle state of a single category node run.
type NodeStatus string

// Node status values. Retrying is a transient sub-state that re-enters
// running; it never outlives the attempt loop.
const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusRetrying  NodeStatus = "retrying"
)

// Terminal reports whether the node reached a final state.
func (s NodeStatus) Terminal() bool {
	return s == NodeStatusCompleted || s == NodeStatusFailed
}

// Job is the metadata persisted for each submitted onboarding request.
// It is owned by the job store; the scheduler and merger mutate it through
// the store's per-job single-writer Update.
type Job struct {
	ID               string                `json:"id"`
	SourceURL        string                `json:"source_url"`
	CompetitorURL    string                `json:"competitor_url,omitempty"`
	Priority         Priority              `json:"priority"`
	Strategy         Strategy              `json:"strategy"`
	Status           JobStatus             `json:"status"`
	Created          time.Time             `json:"created_at"`
	Started          *time.Time            `json:"started_at,omitempty"`
	Completed        *time.Time            `json:"completed_at,omitempty"`
	Progress         float64               `json:"progress"`
	Nodes            map[Category]NodeRun  `json:"nodes"`
	CompetitorNodes  map[Category]NodeRun  `json:"competitor_nodes,omitempty"`
	Record           *MergedRecord         `json:"record,omitempty"`
	CompetitorRecord *MergedRecord         `json:"competitor_record,omitempty"`
	Comparison       *ComparisonReport     `json:"comparison,omitempty"`
	Quality          *QualityReport        `json:"quality,omitempty"`
	ErrorText        string                `json:"error_text,omitempty"`
}

// NodeRun is the persisted state of one (job, category) execution unit.
type NodeRun struct {
	Category     Category     `json:"category"`
	Status       NodeStatus   `json:"status"`
	Attempts     int          `json:"attempts"`
	Started      *time.Time   `json:"started_at,omitempty"`
	Ended        *time.Time   `json:"ended_at,omitempty"`
	Output       *NodePayload `json:"output,omitempty"`
	Confidence   float64      `json:"confidence"`
	Completeness float64      `json:"completeness"`
	Relevance    float64      `json:"relevance"`
	Degraded     bool         `json:"degraded,omitempty"`
	ErrorText    string       `json:"error_text,omitempty"`
}

// EventType classifies progress events appended to a job's event log.
type EventType string

// Progress event types.
const (
	EventJobStarted    EventType = "job_started"
	EventNodeStarted   EventType = "node_started"
	EventNodeCompleted EventType = "node_completed"
	EventNodeFailed    EventType = "node_failed"
	EventNodeRetrying  EventType = "node_retrying"
	EventJobCompleted  EventType = "job_completed"
	EventJobFailed     EventType = "job_failed"
	EventJobCancelled  EventType = "job_cancelled"
)

// TerminalEvent reports whether the event type ends a job's event stream.
// No events may be appended for a job after a terminal event.
func (t EventType) TerminalEvent() bool {
	switch t {
	case EventJobCompleted, EventJobFailed, EventJobCancelled:
		return true
	default:
		return false
	}
}

// ProgressEvent is one entry in a job's append-only event log. Seq is
// assigned by the store and is strictly increasing per job.
type ProgressEvent struct {
	Seq      int64     `json:"seq"`
	JobID    string    `json:"job_id"`
	Type     EventType `json:"type"`
	Category Category  `json:"category,omitempty"`
	Message  string    `json:"message,omitempty"`
	TS       time.Time `json:"ts"`
}

// NodeSnapshot is the read-side projection of a NodeRun.
type NodeSnapshot struct {
	Category     Category   `json:"category"`
	Status       NodeStatus `json:"status"`
	Attempts     int        `json:"attempts"`
	Started      *time.Time `json:"started_at,omitempty"`
	Ended        *time.Time `json:"ended_at,omitempty"`
	Confidence   float64    `json:"confidence"`
	Completeness float64    `json:"completeness"`
	Degraded     bool       `json:"degraded,omitempty"`
	ErrorText    string     `json:"error_text,omitempty"`
}

// JobSnapshot is the read-side projection returned by status queries.
type JobSnapshot struct {
	JobID     string         `json:"job_id"`
	SourceURL string         `json:"source_url"`
	Status    JobStatus      `json:"status"`
	Priority  Priority       `json:"priority"`
	Strategy  Strategy       `json:"strategy"`
	Progress  float64        `json:"progress"`
	Nodes     []NodeSnapshot `json:"nodes"`
	Quality   *QualityReport `json:"quality,omitempty"`
	Created   time.Time      `json:"created_at"`
	Started   *time.Time     `json:"started_at,omitempty"`
	Completed *time.Time     `json:"completed_at,omitempty"`
	ErrorText string         `json:"error_text,omitempty"`
}

// Snapshot builds the read-side projection of a job. Nodes are reported in
// canonical category order.
func (j Job) Snapshot() JobSnapshot {
	snap := JobSnapshot{
		JobID:     j.ID,
		SourceURL: j.SourceURL,
		Status:    j.Status,
		Priority:  j.Priority,
		Strategy:  j.Strategy,
		Progress:  j.Progress,
		Quality:   j.Quality,
		Created:   j.Created,
		Started:   j.Started,
		Completed: j.Completed,
		ErrorText: j.ErrorText,
	}
	for _, cat := range Categories() {
		run, ok := j.Nodes[cat]
		if !ok {
			continue
		}
		snap.Nodes = append(snap.Nodes, NodeSnapshot{
			Category:     run.Category,
			Status:       run.Status,
			Attempts:     run.Attempts,
			Started:      run.Started,
			Ended:        run.Ended,
			Confidence:   run.Confidence,
			Completeness: run.Completeness,
			Degraded:     run.Degraded,
			ErrorText:    run.ErrorText,
		})
	}
	return snap
}

// Page is a fetched document: raw body plus response metadata. Rendered is
// true when the body came from a headless browser pass.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Rendered   bool
	Duration   time.Duration
}

// Fragment is one category-tagged piece of page content with provenance.
type Fragment struct {
	Bucket    string  `json:"bucket"`
	Text      string  `json:"text"`
	SourceURL string  `json:"source_url"`
	Score     float64 `json:"score"`
}

// ContextBundle is the bounded context assembled by the crawler for one node
// run. It is consumed once by the extraction call and discarded.
type ContextBundle struct {
	Category     Category
	Context      string
	Fragments    []Fragment
	PagesVisited int
	Truncated    bool
}

// MeanFragmentScore averages the link scores of the bundle's fragments; it
// feeds the content-relevance term of the quality score.
func (b ContextBundle) MeanFragmentScore() float64 {
	if len(b.Fragments) == 0 {
		return 0
	}
	var sum float64
	for _, f := range b.Fragments {
		sum += f.Score
	}
	return sum / float64(len(b.Fragments))
}
