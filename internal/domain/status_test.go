package domain_test

import (
	"testing"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.Status
		want     bool
	}{
		{domain.StatusActive, domain.StatusCompleted, true},
		{domain.StatusActive, domain.StatusCancelled, true},
		{domain.StatusCompleted, domain.StatusActive, true},
		{domain.StatusCompleted, domain.StatusCancelled, true},
		{domain.StatusCancelled, domain.StatusActive, false},
		{domain.StatusCancelled, domain.StatusCompleted, false},
		{domain.StatusActive, domain.StatusActive, true},
		{domain.StatusCancelled, domain.StatusCancelled, true},
	}

	for _, tc := range cases {
		if got := domain.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s): expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	if got := domain.DeriveStatus(domain.StatusActive, true); got != domain.StatusCompleted {
		t.Errorf("reached active: expected COMPLETED, got %s", got)
	}
	if got := domain.DeriveStatus(domain.StatusCompleted, false); got != domain.StatusActive {
		t.Errorf("target raised: expected ACTIVE, got %s", got)
	}
	// Cancellation is sticky whatever the progress.
	if got := domain.DeriveStatus(domain.StatusCancelled, true); got != domain.StatusCancelled {
		t.Errorf("cancelled reached: expected CANCELLED, got %s", got)
	}
	if got := domain.DeriveStatus(domain.StatusCancelled, false); got != domain.StatusCancelled {
		t.Errorf("cancelled unreached: expected CANCELLED, got %s", got)
	}
}

func TestStatusIsValid(t *testing.T) {
	if !domain.StatusActive.IsValid() {
		t.Error("ACTIVE should be valid")
	}
	if domain.Status("PAUSED").IsValid() {
		t.Error("unknown status should be invalid")
	}
}
