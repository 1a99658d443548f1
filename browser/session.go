// Package browser is the automation harness: it acquires single-use stealth
// Chrome sessions, applies the page-load timeout, and handles CAPTCHA
// challenges with one bounded wait.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"mapscout/config"
	"mapscout/metrics"
	"mapscout/models"
	"mapscout/utils"
)

// captchaMarkers are the challenge strings probed for in rendered text.
var captchaMarkers = []string{
	"captcha",
	"unusual traffic",
	"verify you are human",
	"i'm not a robot",
}

// Manager caps concurrent browser sessions and owns the rotating pools.
type Manager struct {
	cfg     config.BrowserConfig
	logger  *utils.Logger
	metrics *metrics.Registry

	userAgents *RotatingPool
	proxies    *RotatingPool
	slots      chan struct{}
}

// NewManager creates a session manager from the given config.
func NewManager(cfg config.BrowserConfig, logger *utils.Logger, reg *metrics.Registry) *Manager {
	var proxies []string
	if cfg.UseProxies {
		proxies = LoadProxyList(cfg.ProxyListPath)
		if len(proxies) == 0 {
			logger.Warn("[browser] Proxy rotation enabled but %s is empty — running without proxies", cfg.ProxyListPath)
		}
	}

	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 1
	}

	return &Manager{
		cfg:        cfg,
		logger:     logger,
		metrics:    reg,
		userAgents: NewRotatingPool(defaultUserAgents, time.Now().UnixNano()),
		proxies:    NewRotatingPool(proxies, time.Now().UnixNano()+1),
		slots:      make(chan struct{}, maxSessions),
	}
}

// Session is a single-use browser session: it serves exactly one collection
// job and is torn down by Release regardless of outcome.
type Session struct {
	cfg     config.BrowserConfig
	logger  *utils.Logger
	metrics *metrics.Registry

	userAgent string
	proxy     string

	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc

	releaseSlot func()
	released    bool

	captchaWaited bool
}

// Acquire creates a stealth session, or returns ErrResourceExhausted
// immediately when all session slots are held. It never blocks waiting for
// a slot; the scheduler retries on its next tick.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	select {
	case m.slots <- struct{}{}:
	default:
		return nil, models.ErrResourceExhausted
	}

	ua := m.userAgents.Pick()
	proxy := m.proxies.Pick()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(ua),
	)
	if m.cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}
	if bin := findChromeBinary(m.cfg.ChromeBin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	s := &Session{
		cfg:           m.cfg,
		logger:        m.logger,
		metrics:       m.metrics,
		userAgent:     ua,
		proxy:         proxy,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		releaseSlot:   func() { <-m.slots },
	}

	m.metrics.SessionAcquired()

	// Mask the webdriver property before any page script runs.
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(stealthScript, nil)); err != nil {
		// A failed priming evaluate means the browser itself did not come
		// up; surface that instead of handing out a dead session.
		s.Release()
		return nil, fmt.Errorf("browser: start session: %w", err)
	}

	m.logger.Debug("[browser] Session acquired: ua=%q proxy=%q", ua, proxy)
	return s, nil
}

// Release tears the session down and frees its slot. Safe to call more than
// once.
func (s *Session) Release() {
	if s.released {
		return
	}
	s.released = true

	s.cancelBrowser()
	s.cancelAlloc()
	s.releaseSlot()
	s.metrics.SessionReleased()
	s.logger.Debug("[browser] Session released")
}

// Navigate loads url under the configured page-load timeout, dismisses any
// consent prompt, and converts deadline errors to ErrTimeout. ctx cancels
// the navigation early.
func (s *Session) Navigate(ctx context.Context, url string) error {
	tctx, cancel := context.WithTimeout(s.browserCtx, s.cfg.PageLoadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.Evaluate(consentScript, nil),
	)
	if err != nil {
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("navigate %s: %w", url, models.ErrTimeout)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Run executes chromedp actions on the session under ctx.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithCancel(s.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tctx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Evaluate runs a page script and decodes its result into out.
func (s *Session) Evaluate(ctx context.Context, script string, out interface{}) error {
	return s.Run(ctx, chromedp.Evaluate(script, out))
}

// CheckCaptcha probes the rendered text for challenge markers. On the first
// detection it suspends once for the configured backoff (cancellable) and
// re-probes; a marker that persists, or a second detection in the session's
// lifetime, reports ErrCaptchaBlocked. Automated solving is never attempted.
func (s *Session) CheckCaptcha(ctx context.Context) error {
	blocked, err := s.captchaVisible(ctx)
	if err != nil {
		return err
	}
	if !blocked {
		return nil
	}

	if s.captchaWaited {
		return models.ErrCaptchaBlocked
	}
	s.captchaWaited = true

	s.logger.Warn("[browser] CAPTCHA detected — suspending %v", s.cfg.CaptchaBackoff)
	select {
	case <-time.After(s.cfg.CaptchaBackoff):
	case <-ctx.Done():
		return ctx.Err()
	}

	blocked, err = s.captchaVisible(ctx)
	if err != nil {
		return err
	}
	if blocked {
		return models.ErrCaptchaBlocked
	}
	return nil
}

func (s *Session) captchaVisible(ctx context.Context) (bool, error) {
	var bodyText string
	if err := s.Evaluate(ctx, `document.body ? document.body.innerText : ''`, &bodyText); err != nil {
		return false, fmt.Errorf("captcha probe: %w", err)
	}
	return ContainsCaptchaMarker(bodyText), nil
}

// ContainsCaptchaMarker reports whether text carries a known challenge
// marker.
func ContainsCaptchaMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// findChromeBinary locates the Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

const stealthScript = `(function () {
  Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
  Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
})();`

const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'button[aria-label="Alles akzeptieren"]',
    'button.VfPpkd-LgbsSe-OWXEXe-k8QpJ'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})();`
