package storage

import (
	"context"
	"errors"
	"time"

	"mapscout/models"
)

// ErrNotFound is returned when a keyed lookup misses.
var ErrNotFound = errors.New("storage: not found")

// Store is the persistence collaborator the core consumes. It is a
// key-addressed store with simple filters; no ORM semantics are assumed.
type Store interface {
	LoadKeyword(ctx context.Context, id int64) (*models.Keyword, error)
	SaveKeyword(ctx context.Context, kw *models.Keyword) error
	UpdateKeywordStatus(ctx context.Context, id int64, status models.KeywordStatus) error
	// UpdateKeywordRunStats records the outcome of a finished run.
	UpdateKeywordRunStats(ctx context.Context, id int64, totalResults int, successRate float64, lastScraped time.Time) error

	SaveListing(ctx context.Context, l *models.Listing) error
	ListingsByKeyword(ctx context.Context, keywordID int64) ([]*models.Listing, error)

	// SaveScore appends an analysis run; earlier rows are never overwritten.
	SaveScore(ctx context.Context, s *models.WebsiteScore) error
	ScoresByListing(ctx context.Context, listingID int64) ([]*models.WebsiteScore, error)

	Close() error
}
