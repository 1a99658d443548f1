package browser

import (
	"bufio"
	"math/rand"
	"os"
	"strings"
	"sync"
)

// defaultUserAgents is the rotating identity pool. Read-only after init;
// safe for concurrent use.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// RotatingPool hands out entries from a fixed list in random order.
type RotatingPool struct {
	mu      sync.Mutex
	entries []string
	rng     *rand.Rand
}

// NewRotatingPool creates a pool over the given entries. An empty pool is
// valid and always returns "".
func NewRotatingPool(entries []string, seed int64) *RotatingPool {
	return &RotatingPool{
		entries: entries,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Pick returns a random entry, or "" when the pool is empty.
func (p *RotatingPool) Pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) == 0 {
		return ""
	}
	return p.entries[p.rng.Intn(len(p.entries))]
}

// Size returns the number of pool entries.
func (p *RotatingPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// LoadProxyList reads one proxy address per line from path. A missing file
// yields an empty list, not an error: proxies are optional.
func LoadProxyList(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var proxies []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			proxies = append(proxies, line)
		}
	}
	return proxies
}
