package browser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestContainsCaptchaMarker(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"clean page", "Coffee Crew — 4.6 stars, 210 reviews", false},
		{"recaptcha widget", "Please complete the CAPTCHA to continue", true},
		{"rate limit page", "Our systems have detected unusual traffic from your network", true},
		{"human check", "Verify you are human before proceeding", true},
		{"checkbox label", "I'm not a robot", true},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsCaptchaMarker(tt.text); got != tt.want {
				t.Errorf("ContainsCaptchaMarker(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestRotatingPoolPick(t *testing.T) {
	pool := NewRotatingPool([]string{"a", "b", "c"}, 42)
	if pool.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", pool.Size())
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		v := pool.Pick()
		if v != "a" && v != "b" && v != "c" {
			t.Fatalf("Pick() returned unknown entry %q", v)
		}
		seen[v] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected rotation across entries, only saw %v", seen)
	}
}

func TestRotatingPoolEmpty(t *testing.T) {
	pool := NewRotatingPool(nil, 1)
	if got := pool.Pick(); got != "" {
		t.Errorf("Pick() on empty pool = %q, want empty string", got)
	}
}

func TestLoadProxyList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proxies.txt")
	content := "# residential pool\nhttp://10.0.0.1:8080\n\nhttp://10.0.0.2:8080\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	proxies := LoadProxyList(path)
	if len(proxies) != 2 {
		t.Fatalf("LoadProxyList returned %d entries, want 2: %v", len(proxies), proxies)
	}
	if proxies[0] != "http://10.0.0.1:8080" || proxies[1] != "http://10.0.0.2:8080" {
		t.Errorf("unexpected proxy entries: %v", proxies)
	}
}

func TestLoadProxyListMissingFile(t *testing.T) {
	if got := LoadProxyList(filepath.Join(t.TempDir(), "nope.txt")); got != nil {
		t.Errorf("LoadProxyList on missing file = %v, want nil", got)
	}
}

func TestDefaultUserAgentsNonEmpty(t *testing.T) {
	if len(defaultUserAgents) == 0 {
		t.Fatal("defaultUserAgents must not be empty")
	}
	for _, ua := range defaultUserAgents {
		if ua == "" {
			t.Error("empty user agent in default pool")
		}
	}
}
