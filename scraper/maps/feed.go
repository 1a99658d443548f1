package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"mapscout/browser"
	"mapscout/models"
)

// Feed is the scrollable result surface the collector drives. The production
// implementation sits on a browser session; tests use a scripted fake.
type Feed interface {
	// Open navigates to the result feed for the keyword and waits for it
	// to render.
	Open(ctx context.Context, keyword string) error
	// Extract returns the currently visible result cards.
	Extract(ctx context.Context) ([]models.RawListing, error)
	// Scroll advances the feed by one viewport.
	Scroll(ctx context.Context) error
	// Height reports the feed's current scroll height.
	Height(ctx context.Context) (int, error)
}

// SessionFeed drives the live result feed through a browser session.
type SessionFeed struct {
	session *browser.Session
}

// NewSessionFeed wraps a browser session as a Feed.
func NewSessionFeed(s *browser.Session) *SessionFeed {
	return &SessionFeed{session: s}
}

func (f *SessionFeed) Open(ctx context.Context, keyword string) error {
	searchURL := "https://www.google.com/maps/search/" + url.QueryEscape(keyword)
	if err := f.session.Navigate(ctx, searchURL); err != nil {
		return err
	}
	if err := f.session.CheckCaptcha(ctx); err != nil {
		return err
	}
	if err := f.session.Run(ctx, chromedp.WaitVisible(`div[role="feed"]`, chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("wait for result feed: %w", models.ErrExtraction)
	}
	return nil
}

func (f *SessionFeed) Extract(ctx context.Context) ([]models.RawListing, error) {
	var rawJSON string
	if err := f.session.Evaluate(ctx, extractScript, &rawJSON); err != nil {
		return nil, fmt.Errorf("extract cards: %w", err)
	}
	if strings.TrimSpace(rawJSON) == "" {
		return nil, nil
	}

	var cards []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Website string `json:"website"`
		Stars   string `json:"stars"`
		Reviews string `json:"reviews"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal([]byte(rawJSON), &cards); err != nil {
		return nil, fmt.Errorf("decode cards: %w", models.ErrExtraction)
	}

	now := time.Now()
	listings := make([]models.RawListing, 0, len(cards))
	for _, c := range cards {
		if c.Title == "" {
			continue
		}
		listings = append(listings, models.RawListing{
			Title:      c.Title,
			Link:       c.Link,
			Website:    c.Website,
			StarsText:  c.Stars,
			ReviewText: c.Reviews,
			BodyText:   c.Body,
			ScrapedAt:  now,
		})
	}
	return listings, nil
}

func (f *SessionFeed) Scroll(ctx context.Context) error {
	return f.session.Evaluate(ctx, scrollScript, nil)
}

func (f *SessionFeed) Height(ctx context.Context) (int, error) {
	var height int
	if err := f.session.Evaluate(ctx, heightScript, &height); err != nil {
		return 0, fmt.Errorf("read feed height: %w", err)
	}
	return height, nil
}

const extractScript = `(function () {
  const cards = Array.from(document.querySelectorAll('div.Nv2PK'));
  const pickText = (root, selector) => {
    const node = root.querySelector(selector);
    return node ? node.textContent.trim() : '';
  };
  return JSON.stringify(cards.map(card => {
    const link = card.querySelector('a.hfpxzc');
    const website = card.querySelector('a[data-value="Website"]');
    return {
      title: pickText(card, '.qBF1Pd'),
      link: link ? link.href : '',
      website: website ? website.href : '',
      stars: pickText(card, '.MW4etd'),
      reviews: pickText(card, '.UY7F9'),
      body: card.innerText || ''
    };
  }));
})();`

const scrollScript = `(function () {
  const feed = document.querySelector('div[role="feed"]');
  if (feed) {
    feed.scrollBy(0, feed.offsetHeight);
  }
})();`

const heightScript = `(function () {
  const feed = document.querySelector('div[role="feed"]');
  return feed ? feed.scrollHeight : 0;
})();`
