package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/miekg/dns"

	"mapscout/utils"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// contactPathHints rank candidate pages: anchors whose href or text carries
// one of these are fetched before anything else.
var contactPathHints = []string{"contact", "about", "impressum", "kontakt"}

// ignoredEmailSuffixes drop asset filenames the regex would otherwise match.
var ignoredEmailSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js"}

// MXResolver checks whether a mail domain can actually receive mail.
type MXResolver interface {
	HasMX(ctx context.Context, domain string) (bool, error)
}

// DNSResolver answers MX probes against the system's configured nameservers.
type DNSResolver struct {
	client *dns.Client
	server string
}

// NewDNSResolver builds a resolver from /etc/resolv.conf, falling back to a
// public nameserver when the file is unreadable.
func NewDNSResolver() *DNSResolver {
	server := "8.8.8.8:53"
	if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
		server = conf.Servers[0] + ":" + conf.Port
	}
	return &DNSResolver{client: new(dns.Client), server: server}
}

func (r *DNSResolver) HasMX(ctx context.Context, domain string) (bool, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	msg.RecursionDesired = true

	reply, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return false, fmt.Errorf("mx lookup %s: %w", domain, err)
	}
	for _, answer := range reply.Answer {
		if _, ok := answer.(*dns.MX); ok {
			return true, nil
		}
	}
	return false, nil
}

// EmailHunter finds a deliverable contact email on a business website. It
// fetches the landing page plus a bounded set of contact-looking pages,
// extracts mailto and inline addresses, and keeps the first whose domain
// has MX records.
type EmailHunter struct {
	logger   *utils.Logger
	client   *http.Client
	resolver MXResolver
	maxPages int
}

// NewEmailHunter creates a hunter. resolver may not be nil.
func NewEmailHunter(logger *utils.Logger, client *http.Client, resolver MXResolver) *EmailHunter {
	if client == nil {
		client = http.DefaultClient
	}
	return &EmailHunter{
		logger:   logger,
		client:   client,
		resolver: resolver,
		maxPages: 3,
	}
}

// Hunt returns the first verified email found on the site, or "" with a nil
// error when the site simply has none.
func (h *EmailHunter) Hunt(ctx context.Context, site string) (string, error) {
	base, err := url.Parse(site)
	if err != nil || base.Host == "" {
		return "", fmt.Errorf("invalid site url %q", site)
	}

	pages := []string{base.String()}
	visited := map[string]bool{base.String(): true}

	for i := 0; i < len(pages) && i < h.maxPages; i++ {
		doc, err := h.fetch(ctx, pages[i])
		if err != nil {
			if i == 0 {
				return "", err
			}
			h.logger.Debug("[email] Skipping %s: %v", pages[i], err)
			continue
		}

		if email := h.verifyFirst(ctx, extractEmails(doc)); email != "" {
			return email, nil
		}

		// Only the landing page contributes new candidates.
		if i == 0 {
			for _, link := range contactLinks(doc, base) {
				if !visited[link] {
					visited[link] = true
					pages = append(pages, link)
				}
			}
		}
	}

	return "", nil
}

func (h *EmailHunter) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func (h *EmailHunter) verifyFirst(ctx context.Context, candidates []string) string {
	for _, email := range candidates {
		domain := email[strings.LastIndex(email, "@")+1:]
		ok, err := h.resolver.HasMX(ctx, domain)
		if err != nil {
			h.logger.Debug("[email] MX check for %s failed: %v", domain, err)
			continue
		}
		if ok {
			return email
		}
	}
	return ""
}

// extractEmails pulls candidate addresses from a page, mailto links first.
func extractEmails(doc *goquery.Document) []string {
	var candidates []string
	seen := make(map[string]bool)

	add := func(raw string) {
		email := sanitizeEmail(raw)
		if email != "" && !seen[email] {
			seen[email] = true
			candidates = append(candidates, email)
		}
	}

	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if q := strings.Index(addr, "?"); q >= 0 {
			addr = addr[:q]
		}
		add(addr)
	})

	for _, match := range emailPattern.FindAllString(doc.Text(), -1) {
		add(match)
	}

	return candidates
}

// contactLinks returns absolute URLs of anchors that look like contact or
// about pages, same-host only.
func contactLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		text := strings.ToLower(sel.Text())
		lowerHref := strings.ToLower(href)

		matched := false
		for _, hint := range contactPathHints {
			if strings.Contains(lowerHref, hint) || strings.Contains(text, hint) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host {
			return
		}
		abs.Fragment = ""
		links = append(links, abs.String())
	})
	return links
}

// sanitizeEmail normalizes a candidate and rejects asset-name false
// positives.
func sanitizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	email = strings.Trim(email, ".,;:<>()[]\"'")
	if !emailPattern.MatchString(email) {
		return ""
	}
	for _, suffix := range ignoredEmailSuffixes {
		if strings.HasSuffix(email, suffix) {
			return ""
		}
	}
	if strings.Count(email, "@") != 1 {
		return ""
	}
	return email
}
