package domain

import (
	"testing"
	"time"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestInactivity_WholeSeconds(t *testing.T) {
	last := base
	now := base.Add(90*time.Second + 700*time.Millisecond)
	if got := Inactivity(last, now); got != 90*time.Second {
		t.Errorf("Inactivity = %v, want 90s", got)
	}
}

func TestInactivity_NeverNegative(t *testing.T) {
	// A clock skew must not produce a negative inactivity.
	if got := Inactivity(base, base.Add(-5*time.Second)); got != 0 {
		t.Errorf("Inactivity = %v, want 0", got)
	}
}

func TestShouldExpire(t *testing.T) {
	const threshold = 120 * time.Second
	testCases := []struct {
		name   string
		status Status
		idle   time.Duration
		want   bool
	}{
		{"active below threshold", StatusActive, threshold - time.Second, false},
		{"active at threshold", StatusActive, threshold, true},
		{"active above threshold", StatusActive, threshold + time.Minute, true},
		{"closed by system never expires again", StatusClosedBySystem, threshold * 2, false},
		{"closed by user never expires", StatusClosedByUser, threshold * 2, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			now := base.Add(tc.idle)
			if got := ShouldExpire(tc.status, base, now, threshold); got != tc.want {
				t.Errorf("ShouldExpire = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExpire_SetsStatusAndTimestamp(t *testing.T) {
	s := &Session{Status: StatusActive, CreatedAt: base, LastAccessed: base}
	now := base.Add(3 * time.Minute)

	Expire(s, now)

	if s.Status != StatusClosedBySystem {
		t.Errorf("Status = %q, want %q", s.Status, StatusClosedBySystem)
	}
	if !s.LastAccessed.Equal(now) {
		t.Errorf("LastAccessed = %v, want %v", s.LastAccessed, now)
	}
}

func TestClose_SetsStatusAndTimestamp(t *testing.T) {
	s := &Session{Status: StatusActive, CreatedAt: base, LastAccessed: base}
	now := base.Add(time.Minute)

	Close(s, now)

	if s.Status != StatusClosedByUser {
		t.Errorf("Status = %q, want %q", s.Status, StatusClosedByUser)
	}
	if !s.LastAccessed.Equal(now) {
		t.Errorf("LastAccessed = %v, want %v", s.LastAccessed, now)
	}
}

func TestTouch_Monotonic(t *testing.T) {
	s := &Session{Status: StatusActive, CreatedAt: base, LastAccessed: base.Add(time.Minute)}

	Touch(s, base) // earlier than current LastAccessed

	if !s.LastAccessed.Equal(base.Add(time.Minute)) {
		t.Errorf("LastAccessed moved backwards to %v", s.LastAccessed)
	}

	later := base.Add(2 * time.Minute)
	Touch(s, later)
	if !s.LastAccessed.Equal(later) {
		t.Errorf("LastAccessed = %v, want %v", s.LastAccessed, later)
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusActive.Terminal() {
		t.Error("Active should not be terminal")
	}
	if !StatusClosedBySystem.Terminal() {
		t.Error("ClosedBySystem should be terminal")
	}
	if !StatusClosedByUser.Terminal() {
		t.Error("ClosedByUser should be terminal")
	}
}

func TestValidate(t *testing.T) {
	valid := Session{
		SessionID:     "abc",
		Email:         "a@b.com",
		Nickname:      "bob",
		ClientNetwork: NetworkInfo{IP: "10.0.0.1", MAC: "AA:BB"},
		CreatedAt:     base,
		LastAccessed:  base,
		Status:        StatusActive,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	missing := valid
	missing.Email = "   "
	if err := missing.Validate(); err != ErrMissingFields {
		t.Errorf("Validate = %v, want ErrMissingFields", err)
	}

	skewed := valid
	skewed.LastAccessed = base.Add(-time.Second)
	if err := skewed.Validate(); err == nil {
		t.Error("Validate should reject lastAccessed before createdAt")
	}
}
