package analyzer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const analyzerUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// page is one fetched snapshot of a website, shared by all scoring passes so
// a single analysis makes one content request.
type page struct {
	url        *url.URL
	finalURL   string
	statusCode int
	redirected bool
	headers    http.Header
	body       string
	lowerBody  string
	doc        *goquery.Document
	loadTime   float64
}

// fetchPage downloads rawURL with the content cap applied and parses it.
func (a *Analyzer) fetchPage(ctx context.Context, rawURL string) (*page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", analyzerUserAgent)

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.cfg.MaxContentBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	loadTime := time.Since(start).Seconds()

	text := string(body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}

	return &page{
		url:        parsed,
		finalURL:   resp.Request.URL.String(),
		statusCode: resp.StatusCode,
		redirected: resp.Request.URL.String() != rawURL,
		headers:    resp.Header,
		body:       text,
		lowerBody:  strings.ToLower(text),
		doc:        doc,
		loadTime:   loadTime,
	}, nil
}

// measureLoadTime averages additional timed requests beyond the initial
// fetch. A failed sample counts as the request timeout, matching how a
// browser user experiences it.
func (a *Analyzer) measureLoadTime(ctx context.Context, rawURL string, first float64) float64 {
	samples := []float64{first}

	for i := 1; i < a.cfg.LoadTimeSamples; i++ {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return mean(samples)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			break
		}
		req.Header.Set("User-Agent", analyzerUserAgent)

		start := time.Now()
		resp, err := a.client.Do(req)
		if err != nil {
			samples = append(samples, a.cfg.RequestTimeout.Seconds())
			continue
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, a.cfg.MaxContentBytes))
		resp.Body.Close()
		samples = append(samples, time.Since(start).Seconds())
	}

	return mean(samples)
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

func (p *page) metaDescription() string {
	desc, _ := p.doc.Find(`meta[name="description"]`).Attr("content")
	return strings.TrimSpace(desc)
}

func (p *page) hasViewport() bool {
	return p.doc.Find(`meta[name="viewport"]`).Length() > 0
}

func (p *page) wordCount() int {
	return len(strings.Fields(p.doc.Text()))
}

// isInternalLink reports whether href stays on the page's host.
func (p *page) isInternalLink(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return false
	}
	if ref.Host == "" {
		return true
	}
	return strings.EqualFold(ref.Host, p.url.Host)
}

func (p *page) internalLinkCount() int {
	count := 0
	p.doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if p.isInternalLink(href) {
			count++
		}
	})
	return count
}
