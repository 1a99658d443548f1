package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mapscout/cache"
	"mapscout/config"
	"mapscout/metrics"
	"mapscout/notify"
	"mapscout/utils"
)

func testAnalyzerConfig() config.AnalyzerConfig {
	return config.AnalyzerConfig{
		RequestTimeout:       5 * time.Second,
		MaxContentBytes:      5 << 20,
		CacheTTL:             time.Hour,
		HighQualityThreshold: 80,
		LoadTimeSamples:      1,
	}
}

func newTestAnalyzer(c *cache.Cache, n notify.Notifier) *Analyzer {
	return New(testAnalyzerConfig(), utils.NewLogger(), c, n, metrics.NewRegistry())
}

// wellBuiltPage renders a page that satisfies most scoring rules.
func wellBuiltPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-XSS-Protection", "1; mode=block")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Strict-Transport-Security", "max-age=63072000")
	w.Header().Set("Cache-Control", "max-age=3600")

	var links strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&links, `<a href="/page-%d">Page %d</a> `, i, i)
	}
	body := strings.Repeat("quality local business services and reviews ", 60)

	fmt.Fprintf(w, `<!DOCTYPE html>
<html><head>
<title>Blue Bottle Coffee Roasters of Denver CO</title>
<meta name="description" content="%s">
<meta name="viewport" content="width=device-width, initial-scale=1">
<link rel="stylesheet" href="/assets/site.min.css">
<script type="application/ld+json">{"@type":"LocalBusiness"}</script>
</head><body>
<header><nav>%s</nav></header>
<h1>Welcome</h1>
<img src="/hero.jpg" alt="Our shop" srcset="/hero-2x.jpg 2x">
<p>Contact us about our team. Privacy policy and terms apply. Client testimonial reviews.</p>
<p>%s</p>
<footer>About us</footer>
</body></html>`,
		strings.Repeat("Independent coffee roaster serving Denver ", 4)[:140],
		links.String(), body)
}

func TestAnalyzeWellBuiltSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(wellBuiltPage))
	defer srv.Close()

	a := newTestAnalyzer(nil, nil)
	a.client = srv.Client()

	score, err := a.Analyze(context.Background(), 1, srv.URL)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if score.Composite < 0 || score.Composite > 100 {
		t.Errorf("Composite = %v, want within [0,100]", score.Composite)
	}
	if score.SEOScore < 70 {
		t.Errorf("SEOScore = %v, want at least 70 for a well-built page", score.SEOScore)
	}
	if score.CredibilityScore != 100 {
		t.Errorf("CredibilityScore = %v, want 100", score.CredibilityScore)
	}
	// Plain http, so no HTTPS or certificate points: 4 headers + no
	// disclosure caps the pass at 50.
	if score.SecurityScore != 50 {
		t.Errorf("SecurityScore = %v, want 50", score.SecurityScore)
	}
	if !score.MobileViewport {
		t.Error("MobileViewport not detected")
	}
	if score.Cached {
		t.Error("fresh analysis should not be marked cached")
	}
	if score.Grade == "" {
		t.Error("missing grade")
	}
}

func TestAnalyzeUnreachableSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(wellBuiltPage))
	srv.Close()

	a := newTestAnalyzer(nil, nil)
	score, err := a.Analyze(context.Background(), 1, srv.URL)
	if err == nil {
		t.Fatal("expected an error for an unreachable site")
	}
	if len(score.Issues) == 0 {
		t.Error("expected an issue recording the failure")
	}
	if score.Grade != "F" {
		t.Errorf("Grade = %q, want F for unreachable site", score.Grade)
	}
}

func TestAnalyzeCacheRoundTrip(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		wellBuiltPage(w, r)
	}))
	defer srv.Close()

	a := newTestAnalyzer(cache.New(), nil)
	a.client = srv.Client()

	first, err := a.Analyze(context.Background(), 1, srv.URL)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	fetched := hits

	second, err := a.Analyze(context.Background(), 2, srv.URL)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if hits != fetched {
		t.Errorf("second analysis refetched the site (%d -> %d requests)", fetched, hits)
	}
	if !second.Cached {
		t.Error("second analysis should be served from cache")
	}
	if second.ListingID != 2 {
		t.Errorf("cached result kept the wrong listing id: %d", second.ListingID)
	}
	if second.Composite != first.Composite {
		t.Errorf("cached composite %v differs from original %v", second.Composite, first.Composite)
	}
}

type recordingNotifier struct {
	events []string
}

func (r *recordingNotifier) Notify(eventType string, p notify.Payload) {
	r.events = append(r.events, eventType)
}

func TestHighQualityNotification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(wellBuiltPage))
	defer srv.Close()

	notifier := &recordingNotifier{}
	a := newTestAnalyzer(nil, notifier)
	a.client = srv.Client()
	a.cfg.HighQualityThreshold = 1 // everything qualifies

	if _, err := a.Analyze(context.Background(), 1, srv.URL); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notify.EventHighQualityScore {
		t.Errorf("events = %v, want one high-quality notification", notifier.events)
	}
}

func TestComposite(t *testing.T) {
	all := map[string]float64{
		"seo": 80, "security": 80, "performance": 80, "credibility": 80, "basic": 80,
	}
	if got := Composite(all); got != 80 {
		t.Errorf("Composite(uniform 80) = %v, want 80", got)
	}

	// Renormalization: a missing component redistributes its weight.
	partial := map[string]float64{"seo": 100, "security": 100}
	if got := Composite(partial); got != 100 {
		t.Errorf("Composite(partial perfect) = %v, want 100", got)
	}

	if got := Composite(nil); got != 0 {
		t.Errorf("Composite(nil) = %v, want 0", got)
	}

	clamped := map[string]float64{"seo": 500}
	if got := Composite(clamped); got != 100 {
		t.Errorf("Composite(overflow) = %v, want clamp at 100", got)
	}
}

func TestGradeBands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{95, "A+"}, {90, "A+"}, {89.9, "A"}, {80, "A"},
		{79, "B"}, {70, "B"}, {65, "C"}, {55, "D"}, {49.9, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		if got := Grade(tt.score); got != tt.want {
			t.Errorf("Grade(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestCacheKeyNormalization(t *testing.T) {
	a := CacheKey("https://Example.com/Path/")
	b := CacheKey("https://example.com/Path")
	if a != b {
		t.Errorf("equivalent URLs produced different keys: %q vs %q", a, b)
	}

	c := CacheKey("https://example.com/other")
	if a == c {
		t.Error("distinct URLs collided")
	}
}
