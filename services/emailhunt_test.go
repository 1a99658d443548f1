package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mapscout/utils"
)

type fakeResolver struct {
	domains map[string]bool
}

func (f *fakeResolver) HasMX(ctx context.Context, domain string) (bool, error) {
	return f.domains[domain], nil
}

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Info@Example.com", "info@example.com"},
		{"  sales@example.com. ", "sales@example.com"},
		{"<team@example.com>", "team@example.com"},
		{"logo@2x.png", ""},
		{"not-an-email", ""},
		{"a@b@example.com", ""},
	}
	for _, tt := range tests {
		if got := sanitizeEmail(tt.in); got != tt.want {
			t.Errorf("sanitizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHuntMailtoOnLandingPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="mailto:hello@example.com?subject=hi">Email us</a>
		</body></html>`))
	}))
	defer srv.Close()

	hunter := NewEmailHunter(utils.NewLogger(), srv.Client(),
		&fakeResolver{domains: map[string]bool{"example.com": true}})

	email, err := hunter.Hunt(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Hunt returned error: %v", err)
	}
	if email != "hello@example.com" {
		t.Errorf("Hunt = %q, want hello@example.com", email)
	}
}

func TestHuntFollowsContactPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/contact">Contact us</a></body></html>`))
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Reach us at support@example.com</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hunter := NewEmailHunter(utils.NewLogger(), srv.Client(),
		&fakeResolver{domains: map[string]bool{"example.com": true}})

	email, err := hunter.Hunt(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Hunt returned error: %v", err)
	}
	if email != "support@example.com" {
		t.Errorf("Hunt = %q, want support@example.com", email)
	}
}

func TestHuntSkipsDomainsWithoutMX(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			dead@parked.example — or try alive@example.com
		</body></html>`))
	}))
	defer srv.Close()

	hunter := NewEmailHunter(utils.NewLogger(), srv.Client(),
		&fakeResolver{domains: map[string]bool{"example.com": true}})

	email, err := hunter.Hunt(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Hunt returned error: %v", err)
	}
	if email != "alive@example.com" {
		t.Errorf("Hunt = %q, want alive@example.com", email)
	}
}

func TestHuntNoEmailIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Nothing to see here</body></html>`))
	}))
	defer srv.Close()

	hunter := NewEmailHunter(utils.NewLogger(), srv.Client(), &fakeResolver{})

	email, err := hunter.Hunt(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Hunt returned error: %v", err)
	}
	if email != "" {
		t.Errorf("Hunt = %q, want empty", email)
	}
}

func TestHuntLandingPageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	hunter := NewEmailHunter(utils.NewLogger(), srv.Client(), &fakeResolver{})

	if _, err := hunter.Hunt(context.Background(), srv.URL); err == nil {
		t.Fatal("expected an error when the landing page is unreachable")
	}
}
