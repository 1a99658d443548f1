package storage

import (
	"context"
	"sync"
	"time"

	"mapscout/models"
)

// MemoryStore is an in-process Store used by tests and the demo pipeline.
type MemoryStore struct {
	mu sync.RWMutex

	keywords map[int64]*models.Keyword
	listings map[int64]*models.Listing
	scores   map[int64]*models.WebsiteScore

	nextKeywordID int64
	nextListingID int64
	nextScoreID   int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keywords: make(map[int64]*models.Keyword),
		listings: make(map[int64]*models.Listing),
		scores:   make(map[int64]*models.WebsiteScore),
	}
}

func (m *MemoryStore) LoadKeyword(_ context.Context, id int64) (*models.Keyword, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kw, ok := m.keywords[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *kw
	return &cp, nil
}

func (m *MemoryStore) SaveKeyword(_ context.Context, kw *models.Keyword) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kw.ID == 0 {
		m.nextKeywordID++
		kw.ID = m.nextKeywordID
		kw.CreatedAt = time.Now()
	}
	cp := *kw
	m.keywords[kw.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateKeywordStatus(_ context.Context, id int64, status models.KeywordStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kw, ok := m.keywords[id]
	if !ok {
		return ErrNotFound
	}
	kw.Status = status
	if status == models.StatusCompleted {
		kw.CompletedAt = time.Now()
	}
	return nil
}

func (m *MemoryStore) UpdateKeywordRunStats(_ context.Context, id int64, totalResults int, successRate float64, lastScraped time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kw, ok := m.keywords[id]
	if !ok {
		return ErrNotFound
	}
	kw.TotalResults = totalResults
	kw.SuccessRate = successRate
	kw.LastScraped = lastScraped
	return nil
}

func (m *MemoryStore) SaveListing(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.ID == 0 {
		m.nextListingID++
		l.ID = m.nextListingID
	}
	cp := *l
	m.listings[l.ID] = &cp
	return nil
}

func (m *MemoryStore) ListingsByKeyword(_ context.Context, keywordID int64) ([]*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.Listing
	for id := int64(1); id <= m.nextListingID; id++ {
		if l, ok := m.listings[id]; ok && l.KeywordID == keywordID {
			cp := *l
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) SaveScore(_ context.Context, s *models.WebsiteScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextScoreID++
	s.ID = m.nextScoreID
	cp := *s
	m.scores[s.ID] = &cp
	return nil
}

func (m *MemoryStore) ScoresByListing(_ context.Context, listingID int64) ([]*models.WebsiteScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.WebsiteScore
	for id := int64(1); id <= m.nextScoreID; id++ {
		if s, ok := m.scores[id]; ok && s.ListingID == listingID {
			cp := *s
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) Close() error { return nil }
