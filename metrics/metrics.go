// Package metrics counts what the pipeline does: jobs per lane, analysis
// latency, and live browser sessions. No wire format is prescribed; Snapshot
// returns plain values for logging or an exporter to pick up.
package metrics

import (
	"sync"
	"time"
)

// Buckets for the analysis-duration histogram, in seconds.
var durationBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60}

// LaneCounters tracks job outcomes for one queue class.
type LaneCounters struct {
	Started   int64
	Succeeded int64
	Failed    int64
}

// Registry aggregates all pipeline metrics. Safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	lanes map[string]*LaneCounters

	histCounts []int64
	histSum    float64
	histTotal  int64

	activeSessions int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		lanes:      make(map[string]*LaneCounters),
		histCounts: make([]int64, len(durationBuckets)+1),
	}
}

func (r *Registry) lane(name string) *LaneCounters {
	c, ok := r.lanes[name]
	if !ok {
		c = &LaneCounters{}
		r.lanes[name] = c
	}
	return c
}

// JobStarted records a job pulled off the named lane.
func (r *Registry) JobStarted(lane string) {
	r.mu.Lock()
	r.lane(lane).Started++
	r.mu.Unlock()
}

// JobSucceeded records a completed job on the named lane.
func (r *Registry) JobSucceeded(lane string) {
	r.mu.Lock()
	r.lane(lane).Succeeded++
	r.mu.Unlock()
}

// JobFailed records a terminally failed job on the named lane.
func (r *Registry) JobFailed(lane string) {
	r.mu.Lock()
	r.lane(lane).Failed++
	r.mu.Unlock()
}

// ObserveAnalysisDuration records one analysis run's wall time.
func (r *Registry) ObserveAnalysisDuration(d time.Duration) {
	secs := d.Seconds()

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := len(durationBuckets)
	for i, upper := range durationBuckets {
		if secs <= upper {
			idx = i
			break
		}
	}
	r.histCounts[idx]++
	r.histSum += secs
	r.histTotal++
}

// SessionAcquired increments the active-session gauge.
func (r *Registry) SessionAcquired() {
	r.mu.Lock()
	r.activeSessions++
	r.mu.Unlock()
}

// SessionReleased decrements the active-session gauge.
func (r *Registry) SessionReleased() {
	r.mu.Lock()
	if r.activeSessions > 0 {
		r.activeSessions--
	}
	r.mu.Unlock()
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Lanes            map[string]LaneCounters
	DurationBuckets  []float64
	DurationCounts   []int64
	DurationSumSecs  float64
	DurationObserved int64
	ActiveSessions   int64
}

// Snapshot copies the current metric values.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Lanes:            make(map[string]LaneCounters, len(r.lanes)),
		DurationBuckets:  append([]float64(nil), durationBuckets...),
		DurationCounts:   append([]int64(nil), r.histCounts...),
		DurationSumSecs:  r.histSum,
		DurationObserved: r.histTotal,
		ActiveSessions:   r.activeSessions,
	}
	for name, c := range r.lanes {
		s.Lanes[name] = *c
	}
	return s
}
