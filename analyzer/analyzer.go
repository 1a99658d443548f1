// Package analyzer scores business websites across SEO, security,
// performance, credibility and basic quality, producing a weighted
// composite and a letter grade. Results are cached so repeated listings
// pointing at the same site cost one fetch.
package analyzer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mapscout/cache"
	"mapscout/config"
	"mapscout/metrics"
	"mapscout/models"
	"mapscout/notify"
	"mapscout/utils"
)

// componentWeights drive the composite. Absent components renormalize the
// remaining weight instead of dragging the score down.
var componentWeights = map[string]float64{
	"seo":         0.25,
	"security":    0.20,
	"performance": 0.20,
	"credibility": 0.20,
	"basic":       0.15,
}

// Analyzer runs the six scoring passes against a website.
type Analyzer struct {
	cfg      config.AnalyzerConfig
	logger   *utils.Logger
	client   *http.Client
	cache    *cache.Cache
	notifier notify.Notifier
	metrics  *metrics.Registry
}

// New creates an Analyzer. cache and notifier may be nil.
func New(cfg config.AnalyzerConfig, logger *utils.Logger, c *cache.Cache, notifier notify.Notifier, reg *metrics.Registry) *Analyzer {
	return &Analyzer{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		cache:    c,
		notifier: notifier,
		metrics:  reg,
	}
}

// Analyze scores the website for listing listingID. Cache hits return the
// prior result with Cached set; fresh runs write through with the
// configured TTL and fire the high-quality notification when the composite
// clears the threshold.
func (a *Analyzer) Analyze(ctx context.Context, listingID int64, rawURL string) (models.WebsiteScore, error) {
	key := CacheKey(rawURL)

	if a.cache != nil {
		if encoded, ok := a.cache.Get(key); ok {
			var score models.WebsiteScore
			if err := json.Unmarshal([]byte(encoded), &score); err == nil {
				score.ListingID = listingID
				score.Cached = true
				score.CacheKey = key
				a.logger.Debug("[analyzer] Cache hit for %s", rawURL)
				return score, nil
			}
			a.cache.Delete(key)
		}
	}

	start := time.Now()
	score, err := a.analyze(ctx, listingID, rawURL)
	if a.metrics != nil {
		a.metrics.ObserveAnalysisDuration(time.Since(start))
	}
	if err != nil {
		return score, err
	}
	score.CacheKey = key

	if a.cache != nil {
		if encoded, err := json.Marshal(score); err == nil {
			a.cache.Set(key, string(encoded), a.cfg.CacheTTL)
		}
	}

	if a.notifier != nil && score.Composite >= a.cfg.HighQualityThreshold {
		a.notifier.Notify(notify.EventHighQualityScore, notify.Payload{
			Website: rawURL,
			Score:   score.Composite,
			Message: fmt.Sprintf("Website scored %.0f (%s)", score.Composite, score.Grade),
		})
	}

	return score, nil
}

func (a *Analyzer) analyze(ctx context.Context, listingID int64, rawURL string) (models.WebsiteScore, error) {
	score := models.WebsiteScore{
		ListingID:  listingID,
		URL:        rawURL,
		Grade:      "F",
		AnalyzedAt: time.Now(),
	}

	p, err := a.fetchPage(ctx, rawURL)
	if err != nil {
		score.Issues = append(score.Issues, "Site unreachable")
		return score, fmt.Errorf("analyze %s: %w", rawURL, err)
	}

	cert := certInfo{}
	if p.url.Scheme == "https" {
		cert = inspectCertificate(p.url.Hostname(), a.cfg.RequestTimeout)
	}
	score.SSLValid = cert.Valid
	score.SSLIssuer = cert.Issuer
	score.SSLExpires = cert.Expires
	score.SSLDaysLeft = cert.DaysLeft
	if cert.Valid && cert.DaysLeft < 30 {
		score.Issues = append(score.Issues, fmt.Sprintf("Certificate expires in %d days", cert.DaysLeft))
	}

	loadTime := a.measureLoadTime(ctx, rawURL, p.loadTime)
	score.LoadTime = loadTime

	score.BasicScore = basicPass(p, &score)
	score.SEOScore = seoPass(p, &score)
	score.SecurityScore = securityPass(p, cert.Valid, &score)
	score.PerformanceScore = performancePass(p, loadTime, &score)
	score.CredibilityScore = credibilityPass(p, &score)
	technicalPass(p, &score)

	score.Composite = Composite(map[string]float64{
		"basic":       score.BasicScore,
		"seo":         score.SEOScore,
		"security":    score.SecurityScore,
		"performance": score.PerformanceScore,
		"credibility": score.CredibilityScore,
	})
	score.Grade = Grade(score.Composite)

	a.logger.Info("[analyzer] %s scored %.1f (%s), %d issues", rawURL, score.Composite, score.Grade, len(score.Issues))
	return score, nil
}

// Composite combines sub-scores into a weighted mean over present
// components, clamped to [0,100].
func Composite(scores map[string]float64) float64 {
	var total, weight float64
	for component, w := range componentWeights {
		s, ok := scores[component]
		if !ok {
			continue
		}
		total += s * w
		weight += w
	}
	if weight == 0 {
		return 0
	}

	composite := total / weight
	if composite < 0 {
		return 0
	}
	if composite > 100 {
		return 100
	}
	return composite
}

// Grade maps a composite score to a letter grade.
func Grade(composite float64) string {
	switch {
	case composite >= 90:
		return "A+"
	case composite >= 80:
		return "A"
	case composite >= 70:
		return "B"
	case composite >= 60:
		return "C"
	case composite >= 50:
		return "D"
	default:
		return "F"
	}
}

// CacheKey derives the cache key for a website: SHA-1 of the normalized
// URL, so trailing slashes and case differences in the host collapse to
// one entry.
func CacheKey(rawURL string) string {
	normalized := normalizeURL(rawURL)
	sum := sha1.Sum([]byte(normalized))
	return "analysis:" + hex.EncodeToString(sum[:])
}

func normalizeURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed.String()
}
