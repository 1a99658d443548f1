package scheduler

import (
	"hash/fnv"
	"strings"
	"time"

	"mapscout/models"
)

// baseHours picks the starting slot per priority lane: high-priority
// keywords run in the quiet early-morning window.
var baseHours = map[models.Priority]int{
	models.PriorityHigh:   2,
	models.PriorityMedium: 4,
	models.PriorityLow:    6,
}

// OptimalHour computes the run hour for a keyword. Longer keywords shift an
// hour earlier; keywords with a poor track record shift two hours later,
// away from the contended window.
func OptimalHour(text string, priority models.Priority, successRate float64) int {
	hour, ok := baseHours[priority]
	if !ok {
		hour = baseHours[models.PriorityLow]
	}

	if len(strings.Fields(text)) > 3 {
		hour--
	}
	if successRate < 50 {
		hour += 2
	}

	return ((hour % 24) + 24) % 24
}

// OptimalMinute spreads keywords across the hour deterministically.
func OptimalMinute(text string) int {
	h := fnv.New32a()
	h.Write([]byte(text))
	return int(h.Sum32() % 60)
}

// OptimalTime returns the next occurrence of the keyword's slot strictly
// after now. Identical inputs always yield the same hour and minute.
func OptimalTime(text string, priority models.Priority, successRate float64, now time.Time) time.Time {
	hour := OptimalHour(text, priority, successRate)
	minute := OptimalMinute(text)

	slot := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !slot.After(now) {
		slot = slot.AddDate(0, 0, 1)
	}
	return slot
}
