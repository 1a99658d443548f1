// Package maps collects business listings from a scrollable result feed.
// The collector extracts incrementally while scrolling instead of scrolling
// to the bottom first, so a mid-run failure still yields everything seen so
// far.
package maps

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"mapscout/config"
	"mapscout/models"
	"mapscout/utils"
)

// State is the collector's run phase.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateScrolling
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateScrolling:
		return "scrolling"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Collector walks a Feed step by step: extract visible cards, scroll,
// compare height. It stops at the result cap or once the feed stalls for
// StallSteps consecutive steps.
type Collector struct {
	cfg    config.CollectorConfig
	logger *utils.Logger
	rng    *rand.Rand

	state State
}

// NewCollector builds a collector with the given limits.
func NewCollector(cfg config.CollectorConfig, logger *utils.Logger) *Collector {
	return &Collector{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State reports the phase of the most recent run.
func (c *Collector) State() State {
	return c.state
}

// Collect drives the feed for keyword and returns the deduplicated listings.
// On failure it returns the partial set gathered so far alongside the error,
// so callers can persist what they have.
func (c *Collector) Collect(ctx context.Context, feed Feed, keyword string) ([]models.RawListing, error) {
	c.state = StateLoading
	c.logger.Info("[collector] Opening result feed for %q", keyword)

	if err := feed.Open(ctx, keyword); err != nil {
		c.state = StateFailed
		return nil, fmt.Errorf("open feed for %q: %w", keyword, err)
	}

	seen := utils.NewDedupeSet()
	var results []models.RawListing

	lastHeight, err := feed.Height(ctx)
	if err != nil {
		c.state = StateFailed
		return nil, err
	}

	c.state = StateScrolling
	stalls := 0

	for {
		if err := ctx.Err(); err != nil {
			c.state = StateFailed
			return results, err
		}

		batch, err := feed.Extract(ctx)
		if err != nil {
			c.state = StateFailed
			return results, fmt.Errorf("collect %q: %w", keyword, err)
		}

		added := 0
		for _, item := range batch {
			if seen.Add(normalizeTitle(item.Title)) {
				results = append(results, item)
				added++
				if len(results) >= c.cfg.MaxResults {
					c.state = StateDone
					c.logger.Info("[collector] Reached result cap (%d) for %q", c.cfg.MaxResults, keyword)
					return results, nil
				}
			}
		}

		if c.state == StateDraining {
			// Final sweep after the stall threshold; whatever the drain
			// surfaced is the run's total.
			c.state = StateDone
			break
		}

		if err := feed.Scroll(ctx); err != nil {
			c.state = StateFailed
			return results, fmt.Errorf("scroll feed for %q: %w", keyword, err)
		}

		if err := c.pause(ctx); err != nil {
			c.state = StateFailed
			return results, err
		}

		height, err := feed.Height(ctx)
		if err != nil {
			c.state = StateFailed
			return results, fmt.Errorf("collect %q: %w", keyword, err)
		}

		if added == 0 && height == lastHeight {
			stalls++
			if stalls >= c.cfg.StallSteps {
				c.state = StateDraining
			}
		} else {
			stalls = 0
		}
		lastHeight = height
	}

	c.logger.Info("[collector] Feed exhausted for %q — %d listings", keyword, len(results))
	return results, nil
}

// pause sleeps a bounded random interval between steps, returning early if
// ctx is cancelled.
func (c *Collector) pause(ctx context.Context) error {
	min := c.cfg.ScrollDelayMin
	max := c.cfg.ScrollDelayMax
	delay := min
	if max > min {
		delay = min + time.Duration(c.rng.Int63n(int64(max-min)))
	}

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// normalizeTitle is the identity key for dedupe: lowercased with interior
// whitespace collapsed.
func normalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
