package scheduler

import "sync"

// historyWindow bounds how many runs feed the rolling success rate.
const historyWindow = 10

type runRecord struct {
	success bool
	results int
}

// keywordHistory keeps the last runs for one keyword.
type keywordHistory struct {
	runs []runRecord
}

func (h *keywordHistory) record(success bool, results int) {
	h.runs = append(h.runs, runRecord{success: success, results: results})
	if len(h.runs) > historyWindow {
		h.runs = h.runs[len(h.runs)-historyWindow:]
	}
}

// successRate returns the percentage of successful runs in the window.
// No history reads as a clean slate.
func (h *keywordHistory) successRate() float64 {
	if len(h.runs) == 0 {
		return 100
	}
	successes := 0
	for _, r := range h.runs {
		if r.success {
			successes++
		}
	}
	return float64(successes) / float64(len(h.runs)) * 100
}

// performanceHistory tracks run outcomes per keyword, feeding the optimal
// time computation and the optimization pass.
type performanceHistory struct {
	mu       sync.Mutex
	keywords map[int64]*keywordHistory
}

func newPerformanceHistory() *performanceHistory {
	return &performanceHistory{keywords: make(map[int64]*keywordHistory)}
}

func (p *performanceHistory) Record(keywordID int64, success bool, results int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.keywords[keywordID]
	if !ok {
		h = &keywordHistory{}
		p.keywords[keywordID] = h
	}
	h.record(success, results)
}

func (p *performanceHistory) SuccessRate(keywordID int64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.keywords[keywordID]; ok {
		return h.successRate()
	}
	return 100
}

// Runs returns how many runs are recorded for the keyword.
func (p *performanceHistory) Runs(keywordID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.keywords[keywordID]; ok {
		return len(h.runs)
	}
	return 0
}

// TrackedKeywords lists every keyword with at least one recorded run.
func (p *performanceHistory) TrackedKeywords() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]int64, 0, len(p.keywords))
	for id := range p.keywords {
		ids = append(ids, id)
	}
	return ids
}
