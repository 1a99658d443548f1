package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"mapscout/models"
	"mapscout/utils"
)

// PostgresStore persists keywords, listings and website scores to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore. The ping retries cover the
// window where the database container is still starting.
func NewPostgresStore(dsn string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	ping := utils.RetryConfig{
		MaxAttempts: 10,
		BaseDelay:   2 * time.Second,
		Logger:      logger,
	}
	if err := ping.Do(context.Background(), "postgres ping", db.Ping); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS keywords (
			id            SERIAL PRIMARY KEY,
			keyword       TEXT         NOT NULL,
			status        VARCHAR(20)  NOT NULL DEFAULT 'pending',
			priority      VARCHAR(10)  NOT NULL DEFAULT 'medium',
			last_scraped  TIMESTAMPTZ,
			total_results INT          NOT NULL DEFAULT 0,
			success_rate  NUMERIC(5,2) NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			completed_at  TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS listings (
			id          SERIAL PRIMARY KEY,
			keyword_id  INT          NOT NULL REFERENCES keywords(id),
			title       TEXT         NOT NULL,
			link        TEXT         NOT NULL DEFAULT '',
			website     TEXT         NOT NULL DEFAULT '',
			stars       NUMERIC(4,2) NOT NULL DEFAULT 0,
			reviews     INT          NOT NULL DEFAULT 0,
			phone       VARCHAR(50)  NOT NULL DEFAULT '',
			address     TEXT         NOT NULL DEFAULT '',
			email       VARCHAR(255) NOT NULL DEFAULT '',
			social      TEXT         NOT NULL DEFAULT '',
			category    VARCHAR(100) NOT NULL DEFAULT 'Other',
			has_website BOOLEAN      NOT NULL DEFAULT FALSE,
			has_contact BOOLEAN      NOT NULL DEFAULT FALSE,
			has_social  BOOLEAN      NOT NULL DEFAULT FALSE,
			scraped_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (keyword_id, title)
		);

		CREATE TABLE IF NOT EXISTS website_scores (
			id                SERIAL PRIMARY KEY,
			listing_id        INT          NOT NULL REFERENCES listings(id),
			url               TEXT         NOT NULL,
			basic_score       NUMERIC(5,2) NOT NULL DEFAULT 0,
			seo_score         NUMERIC(5,2) NOT NULL DEFAULT 0,
			security_score    NUMERIC(5,2) NOT NULL DEFAULT 0,
			performance_score NUMERIC(5,2) NOT NULL DEFAULT 0,
			credibility_score NUMERIC(5,2) NOT NULL DEFAULT 0,
			composite         NUMERIC(5,2) NOT NULL DEFAULT 0,
			grade             VARCHAR(2)   NOT NULL DEFAULT 'F',
			issues            TEXT         NOT NULL DEFAULT '',
			server            TEXT         NOT NULL DEFAULT '',
			ssl_valid         BOOLEAN      NOT NULL DEFAULT FALSE,
			ssl_issuer        TEXT         NOT NULL DEFAULT '',
			ssl_expires       TIMESTAMPTZ,
			ssl_days_left     INT          NOT NULL DEFAULT 0,
			technologies      TEXT         NOT NULL DEFAULT '',
			load_time         NUMERIC(6,2) NOT NULL DEFAULT 0,
			mobile_viewport   BOOLEAN      NOT NULL DEFAULT FALSE,
			cached            BOOLEAN      NOT NULL DEFAULT FALSE,
			cache_key         VARCHAR(64)  NOT NULL DEFAULT '',
			analyzed_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_keywords_status       ON keywords(status);
		CREATE INDEX IF NOT EXISTS idx_listings_keyword      ON listings(keyword_id);
		CREATE INDEX IF NOT EXISTS idx_scores_listing        ON website_scores(listing_id);
		CREATE INDEX IF NOT EXISTS idx_scores_composite      ON website_scores(composite);
	`)
	return err
}

func (ps *PostgresStore) LoadKeyword(ctx context.Context, id int64) (*models.Keyword, error) {
	kw := &models.Keyword{}
	var lastScraped, completedAt sql.NullTime

	err := ps.db.QueryRowContext(ctx, `
		SELECT id, keyword, status, priority, last_scraped, total_results, success_rate, created_at, completed_at
		FROM keywords WHERE id = $1
	`, id).Scan(&kw.ID, &kw.Text, &kw.Status, &kw.Priority, &lastScraped,
		&kw.TotalResults, &kw.SuccessRate, &kw.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load keyword %d: %w", id, err)
	}

	if lastScraped.Valid {
		kw.LastScraped = lastScraped.Time
	}
	if completedAt.Valid {
		kw.CompletedAt = completedAt.Time
	}
	return kw, nil
}

func (ps *PostgresStore) SaveKeyword(ctx context.Context, kw *models.Keyword) error {
	if kw.ID == 0 {
		return ps.db.QueryRowContext(ctx, `
			INSERT INTO keywords (keyword, status, priority, created_at)
			VALUES ($1, $2, $3, NOW())
			RETURNING id
		`, kw.Text, kw.Status, kw.Priority).Scan(&kw.ID)
	}

	_, err := ps.db.ExecContext(ctx, `
		UPDATE keywords
		SET keyword = $2, status = $3, priority = $4, total_results = $5, success_rate = $6
		WHERE id = $1
	`, kw.ID, kw.Text, kw.Status, kw.Priority, kw.TotalResults, kw.SuccessRate)
	return err
}

func (ps *PostgresStore) UpdateKeywordStatus(ctx context.Context, id int64, status models.KeywordStatus) error {
	completed := status == models.StatusCompleted
	res, err := ps.db.ExecContext(ctx, `
		UPDATE keywords
		SET status = $2,
		    completed_at = CASE WHEN $3 THEN NOW() ELSE completed_at END
		WHERE id = $1
	`, id, status, completed)
	if err != nil {
		return fmt.Errorf("postgres: update keyword %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) UpdateKeywordRunStats(ctx context.Context, id int64, totalResults int, successRate float64, lastScraped time.Time) error {
	res, err := ps.db.ExecContext(ctx, `
		UPDATE keywords
		SET total_results = $2, success_rate = $3, last_scraped = $4
		WHERE id = $1
	`, id, totalResults, successRate, lastScraped)
	if err != nil {
		return fmt.Errorf("postgres: update keyword %d run stats: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) SaveListing(ctx context.Context, l *models.Listing) error {
	err := ps.db.QueryRowContext(ctx, `
		INSERT INTO listings (keyword_id, title, link, website, stars, reviews,
			phone, address, email, social, category,
			has_website, has_contact, has_social, scraped_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (keyword_id, title) DO UPDATE SET
			link = EXCLUDED.link,
			website = EXCLUDED.website,
			stars = EXCLUDED.stars,
			reviews = EXCLUDED.reviews,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			email = EXCLUDED.email,
			social = EXCLUDED.social,
			category = EXCLUDED.category,
			has_website = EXCLUDED.has_website,
			has_contact = EXCLUDED.has_contact,
			has_social = EXCLUDED.has_social,
			scraped_at = EXCLUDED.scraped_at
		RETURNING id
	`, l.KeywordID, l.Title, l.Link, l.Website, l.Stars, l.Reviews,
		l.Phone, l.Address, l.Email, encodeSocial(l.Social), l.Category,
		l.HasWebsite, l.HasContact, l.HasSocial, l.ScrapedAt).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("postgres: save listing %q: %w", l.Title, err)
	}
	return nil
}

func (ps *PostgresStore) ListingsByKeyword(ctx context.Context, keywordID int64) ([]*models.Listing, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, keyword_id, title, link, website, stars, reviews,
		       phone, address, email, social, category,
		       has_website, has_contact, has_social, scraped_at
		FROM listings WHERE keyword_id = $1 ORDER BY id
	`, keywordID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listings for keyword %d: %w", keywordID, err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		var social string
		if err := rows.Scan(&l.ID, &l.KeywordID, &l.Title, &l.Link, &l.Website,
			&l.Stars, &l.Reviews, &l.Phone, &l.Address, &l.Email, &social,
			&l.Category, &l.HasWebsite, &l.HasContact, &l.HasSocial, &l.ScrapedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		l.Social = decodeSocial(social)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (ps *PostgresStore) SaveScore(ctx context.Context, s *models.WebsiteScore) error {
	var expires sql.NullTime
	if !s.SSLExpires.IsZero() {
		expires = sql.NullTime{Time: s.SSLExpires, Valid: true}
	}

	err := ps.db.QueryRowContext(ctx, `
		INSERT INTO website_scores (listing_id, url,
			basic_score, seo_score, security_score, performance_score, credibility_score,
			composite, grade, issues, server, ssl_valid, ssl_issuer, ssl_expires,
			ssl_days_left, technologies, load_time, mobile_viewport, cached, cache_key, analyzed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING id
	`, s.ListingID, s.URL,
		s.BasicScore, s.SEOScore, s.SecurityScore, s.PerformanceScore, s.CredibilityScore,
		s.Composite, s.Grade, strings.Join(s.Issues, "|"), s.Server, s.SSLValid, s.SSLIssuer,
		expires, s.SSLDaysLeft, strings.Join(s.Technologies, "|"), s.LoadTime,
		s.MobileViewport, s.Cached, s.CacheKey, s.AnalyzedAt).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("postgres: save score for listing %d: %w", s.ListingID, err)
	}
	return nil
}

func (ps *PostgresStore) ScoresByListing(ctx context.Context, listingID int64) ([]*models.WebsiteScore, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, listing_id, url,
		       basic_score, seo_score, security_score, performance_score, credibility_score,
		       composite, grade, issues, server, ssl_valid, ssl_issuer, ssl_expires,
		       ssl_days_left, technologies, load_time, mobile_viewport, cached, cache_key, analyzed_at
		FROM website_scores WHERE listing_id = $1 ORDER BY analyzed_at DESC
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("postgres: scores for listing %d: %w", listingID, err)
	}
	defer rows.Close()

	var scores []*models.WebsiteScore
	for rows.Next() {
		s := &models.WebsiteScore{}
		var issues, technologies string
		var expires sql.NullTime
		if err := rows.Scan(&s.ID, &s.ListingID, &s.URL,
			&s.BasicScore, &s.SEOScore, &s.SecurityScore, &s.PerformanceScore, &s.CredibilityScore,
			&s.Composite, &s.Grade, &issues, &s.Server, &s.SSLValid, &s.SSLIssuer, &expires,
			&s.SSLDaysLeft, &technologies, &s.LoadTime, &s.MobileViewport, &s.Cached,
			&s.CacheKey, &s.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan score: %w", err)
		}
		if issues != "" {
			s.Issues = strings.Split(issues, "|")
		}
		if technologies != "" {
			s.Technologies = strings.Split(technologies, "|")
		}
		if expires.Valid {
			s.SSLExpires = expires.Time
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// Social profiles are stored flat as "platform=url" pairs joined by "|",
// mirroring how issue lists are stored.
func encodeSocial(social map[string]string) string {
	if len(social) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(social))
	for platform, url := range social {
		pairs = append(pairs, platform+"="+url)
	}
	return strings.Join(pairs, "|")
}

func decodeSocial(encoded string) map[string]string {
	if encoded == "" {
		return nil
	}
	social := make(map[string]string)
	for _, pair := range strings.Split(encoded, "|") {
		if k, v, ok := strings.Cut(pair, "="); ok && k != "" {
			social[k] = v
		}
	}
	return social
}
