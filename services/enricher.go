// Package services turns raw map cards into enriched business records:
// ratings, contact details, social profiles, category, and a verified
// contact email.
package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mapscout/models"
	"mapscout/utils"
)

// SearchClient answers web search queries with result URLs. The production
// implementation is external; tests script one.
type SearchClient interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// socialPlatforms lists the profile hosts probed during social discovery,
// in a fixed order so runs are reproducible.
var socialPlatforms = []struct {
	name   string
	domain string
}{
	{"facebook", "facebook.com"},
	{"instagram", "instagram.com"},
	{"twitter", "twitter.com"},
	{"linkedin", "linkedin.com"},
	{"youtube", "youtube.com"},
}

// phonePatterns are tried in order; the first match wins.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\+?\d{1,2}[-.\s]?)?(\(?\d{3}\)?[-.\s]?)\d{3}[-.\s]?\d{4}`),
	regexp.MustCompile(`(\+?\d{1,2}[-.\s]?)?\d{5}[-.\s]?\d{5}`),
	regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
}

var addressPattern = regexp.MustCompile(`\d+\s+[\w\s]+,?\s*\w+[\s\w]*,?\s*[A-Z]{2}\s*\d{5}`)

var numberPattern = regexp.MustCompile(`[\d.,]+`)

// categoryRules map title keywords to a service category. First hit wins;
// anything unmatched is "Other".
var categoryRules = []struct {
	category string
	words    []string
}{
	{"Food & Dining", []string{"restaurant", "cafe", "coffee", "food", "dining", "bakery", "bar"}},
	{"Hospitality", []string{"hotel", "lodging", "resort", "inn", "hostel"}},
	{"Retail", []string{"shop", "store", "retail", "boutique", "market"}},
	{"Healthcare", []string{"medical", "clinic", "hospital", "doctor", "dental", "pharmacy"}},
	{"Services", []string{"repair", "salon", "cleaning", "plumber", "electrician", "agency"}},
}

// Enricher builds full listings from raw cards. Every sub-step degrades to
// a warning; a single listing's missing field never fails the run.
type Enricher struct {
	logger *utils.Logger
	search SearchClient
	hunter *EmailHunter
}

// NewEnricher creates an Enricher. search and hunter may be nil, which
// disables social discovery and the email hunt respectively.
func NewEnricher(logger *utils.Logger, search SearchClient, hunter *EmailHunter) *Enricher {
	return &Enricher{logger: logger, search: search, hunter: hunter}
}

// Enrich converts a raw card into a Listing for the keyword, returning the
// listing and the warnings accumulated along the way.
func (e *Enricher) Enrich(ctx context.Context, keywordID int64, raw models.RawListing) (models.Listing, models.Warnings) {
	var warnings models.Warnings

	listing := models.Listing{
		KeywordID: keywordID,
		Title:     strings.TrimSpace(raw.Title),
		Link:      raw.Link,
		Website:   raw.Website,
		ScrapedAt: raw.ScrapedAt,
	}

	if raw.StarsText != "" {
		stars, err := ParseStars(raw.StarsText)
		if err != nil {
			warnings = warnings.Add(fmt.Sprintf("%s: unparseable rating %q", listing.Title, raw.StarsText))
		} else {
			listing.Stars = stars
		}
	}

	if raw.ReviewText != "" {
		reviews, err := ParseReviews(raw.ReviewText)
		if err != nil {
			warnings = warnings.Add(fmt.Sprintf("%s: unparseable review count %q", listing.Title, raw.ReviewText))
		} else {
			listing.Reviews = reviews
		}
	}

	listing.Phone = ExtractPhone(raw.BodyText)
	listing.Address = ExtractAddress(raw.BodyText)
	listing.Category = Categorize(listing.Title)

	if e.search != nil && listing.Title != "" {
		social, socialWarnings := e.discoverSocial(ctx, listing.Title)
		listing.Social = social
		warnings = append(warnings, socialWarnings...)
	}

	if e.hunter != nil && listing.Website != "" {
		email, err := e.hunter.Hunt(ctx, listing.Website)
		if err != nil {
			warnings = warnings.Add(fmt.Sprintf("%s: email hunt failed: %v", listing.Title, err))
		} else {
			listing.Email = email
		}
	}

	listing.RefreshQualityFlags()
	return listing, warnings
}

// discoverSocial looks up one profile URL per platform. A platform whose
// search fails is skipped with a warning; the rest still run.
func (e *Enricher) discoverSocial(ctx context.Context, businessName string) (map[string]string, models.Warnings) {
	var warnings models.Warnings
	social := make(map[string]string)

	for _, platform := range socialPlatforms {
		query := fmt.Sprintf("%s official %s", businessName, platform.domain)
		results, err := e.search.Search(ctx, query, 3)
		if err != nil {
			warnings = warnings.Add(fmt.Sprintf("%s: %s lookup failed: %v", businessName, platform.name, err))
			continue
		}
		for _, u := range results {
			if strings.Contains(u, platform.domain) {
				social[platform.name] = u
				break
			}
		}
	}

	if len(social) == 0 {
		return nil, warnings
	}
	return social, warnings
}

// ParseStars parses a rating like "4.6" or "4,6" (comma-decimal locales).
func ParseStars(text string) (float64, error) {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("no number in %q", text)
	}
	match = strings.ReplaceAll(match, ",", ".")
	stars, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, err
	}
	if stars < 0 || stars > 5 {
		return 0, fmt.Errorf("rating %v out of range", stars)
	}
	return stars, nil
}

// ParseReviews parses a review count like "(1,234)" or "210 reviews".
func ParseReviews(text string) (int, error) {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("no number in %q", text)
	}
	match = strings.ReplaceAll(match, ",", "")
	match = strings.ReplaceAll(match, ".", "")
	return strconv.Atoi(match)
}

// ExtractPhone returns the first phone-shaped substring in text, or "".
func ExtractPhone(text string) string {
	for _, pattern := range phonePatterns {
		if match := pattern.FindString(text); match != "" {
			return strings.TrimSpace(match)
		}
	}
	return ""
}

// ExtractAddress returns the first US-street-address-shaped substring, or "".
func ExtractAddress(text string) string {
	return strings.TrimSpace(addressPattern.FindString(text))
}

// Categorize maps a business title to a category, defaulting to "Other".
func Categorize(title string) string {
	lower := strings.ToLower(title)
	for _, rule := range categoryRules {
		for _, word := range rule.words {
			if strings.Contains(lower, word) {
				return rule.category
			}
		}
	}
	return "Other"
}
