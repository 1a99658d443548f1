package models

import (
	"strings"
	"time"
)

// KeywordStatus tracks a keyword through its collection lifecycle.
// The status field doubles as the lock of record: a keyword in
// StatusInProgress must not start a second run.
type KeywordStatus string

const (
	StatusPending    KeywordStatus = "pending"
	StatusInProgress KeywordStatus = "in_progress"
	StatusCompleted  KeywordStatus = "completed"
	StatusError      KeywordStatus = "error"
)

// Priority buckets keywords into scheduling lanes.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Keyword is a search term to collect listings for.
type Keyword struct {
	ID           int64
	Text         string
	Status       KeywordStatus
	Priority     Priority
	LastScraped  time.Time
	TotalResults int
	SuccessRate  float64
	CreatedAt    time.Time
	CompletedAt  time.Time
}

// RawListing holds unprocessed data extracted from a visible map card.
type RawListing struct {
	Title      string
	Link       string
	Website    string
	StarsText  string
	ReviewText string
	BodyText   string
	ScrapedAt  time.Time
}

// Listing is an enriched business record. It belongs to exactly one keyword.
type Listing struct {
	ID        int64
	KeywordID int64
	Title     string
	Link      string
	Website   string
	Stars     float64
	Reviews   int
	Phone     string
	Address   string
	Email     string
	Social    map[string]string
	Category  string

	HasWebsite bool
	HasContact bool
	HasSocial  bool

	ScrapedAt time.Time
}

// RefreshQualityFlags recomputes the derived quality flags. Call it whenever
// contact fields change.
func (l *Listing) RefreshQualityFlags() {
	l.HasWebsite = strings.TrimSpace(l.Website) != ""
	l.HasContact = strings.TrimSpace(l.Phone) != "" ||
		strings.TrimSpace(l.Email) != "" ||
		strings.TrimSpace(l.Address) != ""
	l.HasSocial = len(l.Social) > 0
}

// WebsiteScore is one analysis run against a listing's website. Rows are
// immutable once written; a re-analysis appends a new row.
type WebsiteScore struct {
	ID        int64
	ListingID int64
	URL       string

	BasicScore       float64
	SEOScore         float64
	SecurityScore    float64
	PerformanceScore float64
	CredibilityScore float64

	Composite float64
	Grade     string
	Issues    []string

	// Technical pass output, descriptive only.
	Server         string
	SSLValid       bool
	SSLIssuer      string
	SSLExpires     time.Time
	SSLDaysLeft    int
	Technologies   []string
	LoadTime       float64
	MobileViewport bool

	Cached     bool
	CacheKey   string
	AnalyzedAt time.Time
}

// JobKind separates collection runs from analysis runs.
type JobKind string

const (
	JobCollection JobKind = "collection"
	JobAnalysis   JobKind = "analysis"
)

// JobState is the lifecycle of a scheduled job.
type JobState string

const (
	JobScheduled JobState = "scheduled"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// ScheduledJob is a planned or in-flight run. Jobs are retained after
// reaching a terminal state so status and warnings stay queryable.
type ScheduledJob struct {
	ID          string
	KeywordID   int64
	Kind        JobKind
	Lane        string
	ScheduledAt time.Time
	Priority    Priority
	Status      JobState
	Attempts    int
	LastError   string
	Warnings    Warnings
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Warnings is an ordered list of non-fatal issues accumulated while a job
// ran. Sub-step failures in enrichment and analysis land here instead of
// failing the job.
type Warnings []string

// Add appends a warning and returns the extended list.
func (w Warnings) Add(msg string) Warnings {
	if strings.TrimSpace(msg) == "" {
		return w
	}
	return append(w, msg)
}
