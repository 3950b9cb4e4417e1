package sinks

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roomsage/onboarder/internal/onboarding"
)

// PrometheusSink exports pipeline progress metrics. It owns the collectors
// for node and job lifecycle counts and the node duration histogram.
type PrometheusSink struct {
	nodesStarted  *prometheus.CounterVec
	nodesFinished *prometheus.CounterVec
	nodeRetries   *prometheus.CounterVec
	jobsFinished  *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec

	mu      sync.Mutex
	started map[string]time.Time
}

// NewPrometheusSink registers the collectors against the provided registry;
// a nil registry falls back to the default one.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		nodesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarder_nodes_started_total",
			Help: "Node runs started, partitioned by category.",
		}, []string{"category"}),
		nodesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarder_nodes_finished_total",
			Help: "Node runs finished, partitioned by category and result.",
		}, []string{"category", "result"}),
		nodeRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarder_node_retries_total",
			Help: "Node retry attempts, partitioned by category.",
		}, []string{"category"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarder_jobs_finished_total",
			Help: "Jobs finished, partitioned by result.",
		}, []string{"result"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboarder_node_duration_seconds",
			Help:    "Wall time per finished node run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"category"}),
		started: make(map[string]time.Time),
	}
	for _, collector := range []prometheus.Collector{
		s.nodesStarted,
		s.nodesFinished,
		s.nodeRetries,
		s.jobsFinished,
		s.nodeDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Observe implements progress.Sink. Node durations come from the gap between
// a node's started and finished event timestamps.
func (s *PrometheusSink) Observe(evt onboarding.ProgressEvent) {
	category := string(evt.Category)
	switch evt.Type {
	case onboarding.EventNodeStarted:
		s.nodesStarted.WithLabelValues(category).Inc()
		s.markStarted(evt)
	case onboarding.EventNodeCompleted:
		s.nodesFinished.WithLabelValues(category, "completed").Inc()
		s.observeDuration(evt)
	case onboarding.EventNodeFailed:
		s.nodesFinished.WithLabelValues(category, "failed").Inc()
		s.observeDuration(evt)
	case onboarding.EventNodeRetrying:
		s.nodeRetries.WithLabelValues(category).Inc()
	case onboarding.EventJobCompleted:
		s.jobsFinished.WithLabelValues("completed").Inc()
	case onboarding.EventJobFailed:
		s.jobsFinished.WithLabelValues("failed").Inc()
	case onboarding.EventJobCancelled:
		s.jobsFinished.WithLabelValues("cancelled").Inc()
	}
}

func (s *PrometheusSink) markStarted(evt onboarding.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started[nodeKey(evt)] = evt.TS
}

func (s *PrometheusSink) observeDuration(evt onboarding.ProgressEvent) {
	s.mu.Lock()
	start, ok := s.started[nodeKey(evt)]
	if ok {
		delete(s.started, nodeKey(evt))
	}
	s.mu.Unlock()
	if !ok || evt.TS.Before(start) {
		return
	}
	s.nodeDuration.WithLabelValues(string(evt.Category)).Observe(evt.TS.Sub(start).Seconds())
}

func nodeKey(evt onboarding.ProgressEvent) string {
	return evt.JobID + "|" + string(evt.Category)
}
