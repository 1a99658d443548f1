package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", ErrTimeout, true},
		{"extraction", ErrExtraction, true},
		{"resource exhausted", ErrResourceExhausted, true},
		{"captcha is terminal", ErrCaptchaBlocked, false},
		{"validation is terminal", ErrValidation, false},
		{"wrapped captcha", fmt.Errorf("open feed: %w", ErrCaptchaBlocked), false},
		{"wrapped timeout", fmt.Errorf("navigate: %w", ErrTimeout), true},
		{"unknown error", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRefreshQualityFlags(t *testing.T) {
	tests := []struct {
		name    string
		listing Listing
		website bool
		contact bool
		social  bool
	}{
		{"empty", Listing{}, false, false, false},
		{"website only", Listing{Website: "https://example.com"}, true, false, false},
		{"phone counts as contact", Listing{Phone: "303-555-0147"}, false, true, false},
		{"email counts as contact", Listing{Email: "hi@example.com"}, false, true, false},
		{"address counts as contact", Listing{Address: "1 Main St, Denver, CO 80202"}, false, true, false},
		{"whitespace is not contact", Listing{Phone: "   "}, false, false, false},
		{"social", Listing{Social: map[string]string{"facebook": "https://facebook.com/x"}}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.listing.RefreshQualityFlags()
			if tt.listing.HasWebsite != tt.website ||
				tt.listing.HasContact != tt.contact ||
				tt.listing.HasSocial != tt.social {
				t.Errorf("flags = %v/%v/%v, want %v/%v/%v",
					tt.listing.HasWebsite, tt.listing.HasContact, tt.listing.HasSocial,
					tt.website, tt.contact, tt.social)
			}
		})
	}
}

func TestWarningsAdd(t *testing.T) {
	var w Warnings
	w = w.Add("first")
	w = w.Add("")
	w = w.Add("  ")
	w = w.Add("second")

	if len(w) != 2 {
		t.Fatalf("len = %d, want 2 (blank entries dropped)", len(w))
	}
	if w[0] != "first" || w[1] != "second" {
		t.Errorf("warnings out of order: %v", w)
	}
}

func TestJobStateTerminal(t *testing.T) {
	terminal := []JobState{JobCompleted, JobFailed, JobCancelled}
	open := []JobState{JobScheduled, JobRunning}

	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
