package analyzer

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mapscout/models"
)

// securityHeaders are the response headers worth 6.25 points each.
var securityHeaders = []string{
	"X-Frame-Options",
	"X-XSS-Protection",
	"X-Content-Type-Options",
	"Strict-Transport-Security",
}

// disclosureMarkers flag pages leaking internals to visitors.
var disclosureMarkers = []string{
	"sql syntax",
	"stack trace",
	"fatal error",
	"index of /",
	"phpinfo()",
	"debug mode",
}

// techSignatures map a technology name to the body substrings that betray it.
var techSignatures = []struct {
	name       string
	signatures []string
}{
	{"wordpress", []string{"wp-content", "wp-includes", "wordpress"}},
	{"shopify", []string{"shopify"}},
	{"react", []string{"react", "react-dom"}},
	{"angular", []string{"angular"}},
	{"vue", []string{"vue.js"}},
	{"jquery", []string{"jquery"}},
	{"bootstrap", []string{"bootstrap"}},
	{"google_analytics", []string{"ga.js", "analytics.js", "gtag.js"}},
}

// basicPass scores reachability and page fundamentals.
func basicPass(p *page, score *models.WebsiteScore) float64 {
	var points float64

	if p.statusCode >= 200 && p.statusCode < 300 {
		points += 30
	} else {
		score.Issues = append(score.Issues, fmt.Sprintf("Status code %d", p.statusCode))
	}

	switch {
	case p.loadTime < 3:
		points += 20
	case p.loadTime < 5:
		points += 10
	default:
		score.Issues = append(score.Issues, fmt.Sprintf("Slow initial load: %.2fs", p.loadTime))
	}

	if p.hasViewport() {
		points += 20
		score.MobileViewport = true
	} else {
		score.Issues = append(score.Issues, "No viewport meta tag")
	}

	if p.wordCount() >= 300 {
		points += 15
	} else {
		score.Issues = append(score.Issues, fmt.Sprintf("Thin content: %d words", p.wordCount()))
	}

	if strings.TrimSpace(p.doc.Find("title").First().Text()) != "" {
		points += 15
	} else {
		score.Issues = append(score.Issues, "Missing title tag")
	}

	return points
}

// seoPass applies the on-page SEO checklist, 100 points total.
func seoPass(p *page, score *models.WebsiteScore) float64 {
	var points float64

	title := strings.TrimSpace(p.doc.Find("title").First().Text())
	if title == "" {
		score.Issues = append(score.Issues, "Missing title tag")
	} else if n := len(title); n >= 30 && n <= 60 {
		points += 15
	} else {
		score.Issues = append(score.Issues, fmt.Sprintf("Title length %d characters (ideal: 30-60)", n))
	}

	desc := p.metaDescription()
	if desc == "" {
		score.Issues = append(score.Issues, "Missing meta description")
	} else if n := len(desc); n >= 120 && n <= 160 {
		points += 15
	} else {
		score.Issues = append(score.Issues, fmt.Sprintf("Meta description length %d characters (ideal: 120-160)", n))
	}

	if h1 := p.doc.Find("h1").Length(); h1 == 1 {
		points += 10
	} else {
		score.Issues = append(score.Issues, fmt.Sprintf("Found %d H1 tags (should be 1)", h1))
	}

	images := p.doc.Find("img")
	withAlt := 0
	images.Each(func(_ int, sel *goquery.Selection) {
		if alt, ok := sel.Attr("alt"); ok && alt != "" {
			withAlt++
		}
	})
	altPct := 100.0
	if images.Length() > 0 {
		altPct = float64(withAlt) / float64(images.Length()) * 100
	}
	if altPct >= 80 {
		points += 10
	} else {
		score.Issues = append(score.Issues, fmt.Sprintf("Only %.1f%% of images have alt text", altPct))
	}

	if len(p.url.Path) <= 50 {
		points += 10
	} else {
		score.Issues = append(score.Issues, "URL path is too long")
	}

	if p.hasViewport() {
		points += 10
	} else {
		score.Issues = append(score.Issues, "Not mobile friendly")
	}

	if internal := p.internalLinkCount(); internal >= 10 {
		points += 10
	} else {
		score.Issues = append(score.Issues, fmt.Sprintf("Only %d internal links found", internal))
	}

	if words := p.wordCount(); words >= 300 {
		points += 10
	} else {
		score.Issues = append(score.Issues, fmt.Sprintf("Low word count: %d (minimum 300 recommended)", words))
	}

	if p.doc.Find(`script[type="application/ld+json"]`).Length() > 0 {
		points += 10
	} else {
		score.Issues = append(score.Issues, "No schema markup found")
	}

	return points
}

// securityPass scores transport security and hardening headers. certValid
// comes from the separate certificate probe so a TLS failure cannot take
// the whole pass down.
func securityPass(p *page, certValid bool, score *models.WebsiteScore) float64 {
	var points float64

	if p.url.Scheme == "https" {
		points += 25
	} else {
		score.Issues = append(score.Issues, "Not using HTTPS")
	}

	if certValid {
		points += 25
	} else {
		score.Issues = append(score.Issues, "SSL certificate issues")
	}

	present := 0
	for _, header := range securityHeaders {
		if p.headers.Get(header) != "" {
			present++
		}
	}
	points += float64(present) * 6.25
	if present < len(securityHeaders) {
		score.Issues = append(score.Issues, fmt.Sprintf("Missing %d security headers", len(securityHeaders)-present))
	}

	disclosed := false
	for _, marker := range disclosureMarkers {
		if strings.Contains(p.lowerBody, marker) {
			disclosed = true
			break
		}
	}
	if !disclosed {
		points += 25
	} else {
		score.Issues = append(score.Issues, "Potential information disclosure")
	}

	return points
}

// performancePass scores load time and asset hygiene.
func performancePass(p *page, loadTime float64, score *models.WebsiteScore) float64 {
	var points float64

	switch {
	case loadTime < 3:
		points += 40
	case loadTime < 5:
		points += 30
	case loadTime < 8:
		points += 20
	default:
		score.Issues = append(score.Issues, fmt.Sprintf("Slow load time: %.2fs", loadTime))
	}

	if optimizedImagesPercentage(p.doc) >= 80 {
		points += 20
	} else {
		score.Issues = append(score.Issues, "Low percentage of optimized images")
	}

	if p.headers.Get("Cache-Control") != "" || p.headers.Get("Expires") != "" {
		points += 20
	} else {
		score.Issues = append(score.Issues, "Poor caching configuration")
	}

	if minifiedResourcesPercentage(p.doc) >= 80 {
		points += 20
	} else {
		score.Issues = append(score.Issues, "Low percentage of minified resources")
	}

	return points
}

// optimizedImagesPercentage treats responsive or lazy images as optimized.
// A page without images has nothing to optimize and scores full.
func optimizedImagesPercentage(doc *goquery.Document) float64 {
	images := doc.Find("img")
	if images.Length() == 0 {
		return 100
	}
	optimized := 0
	images.Each(func(_ int, sel *goquery.Selection) {
		_, hasSrcset := sel.Attr("srcset")
		loading, _ := sel.Attr("loading")
		if hasSrcset || loading == "lazy" {
			optimized++
		}
	})
	return float64(optimized) / float64(images.Length()) * 100
}

// minifiedResourcesPercentage counts .min. script and stylesheet URLs among
// all external assets. No external assets scores full.
func minifiedResourcesPercentage(doc *goquery.Document) float64 {
	total, minified := 0, 0
	count := func(attr string) func(int, *goquery.Selection) {
		return func(_ int, sel *goquery.Selection) {
			src, ok := sel.Attr(attr)
			if !ok || src == "" {
				return
			}
			total++
			if strings.Contains(src, ".min.") {
				minified++
			}
		}
	}
	doc.Find("script[src]").Each(count("src"))
	doc.Find(`link[rel="stylesheet"]`).Each(count("href"))

	if total == 0 {
		return 100
	}
	return float64(minified) / float64(total) * 100
}

// credibilityPass scores trust signals in the page text.
func credibilityPass(p *page, score *models.WebsiteScore) float64 {
	var points float64

	checks := []struct {
		points     float64
		indicators []string
		issue      string
	}{
		{20, []string{"contact", "about", "phone", "email", "address"}, "Missing contact information"},
		{15, []string{"privacy", "policy", "gdpr"}, "No privacy policy found"},
		{15, []string{"terms", "conditions", "legal"}, "No terms of service found"},
		{15, []string{"testimonial", "review", "rating", "client"}, "No social proof elements"},
		{15, []string{"about us", "our story", "company", "team"}, "Limited company information"},
	}

	for _, check := range checks {
		found := false
		for _, indicator := range check.indicators {
			if strings.Contains(p.lowerBody, indicator) {
				found = true
				break
			}
		}
		if found {
			points += check.points
		} else {
			score.Issues = append(score.Issues, check.issue)
		}
	}

	if hasProfessionalLayout(p.doc) {
		points += 20
	} else {
		score.Issues = append(score.Issues, "Unprofessional design detected")
	}

	return points
}

// hasProfessionalLayout checks for a stylesheet plus semantic page
// structure, the cheapest proxy for an intentionally designed site.
func hasProfessionalLayout(doc *goquery.Document) bool {
	styled := doc.Find(`link[rel="stylesheet"]`).Length() > 0 || doc.Find("style").Length() > 0
	structured := doc.Find("nav").Length() > 0 ||
		doc.Find("header").Length() > 0 ||
		doc.Find("footer").Length() > 0
	return styled && structured
}

// technicalPass fills the descriptive fields; it contributes no points.
func technicalPass(p *page, score *models.WebsiteScore) {
	score.Server = p.headers.Get("Server")

	for _, tech := range techSignatures {
		for _, sig := range tech.signatures {
			if strings.Contains(p.lowerBody, sig) {
				score.Technologies = append(score.Technologies, tech.name)
				break
			}
		}
	}
}
