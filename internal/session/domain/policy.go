package domain

import "time"

// The lifecycle policy is the single source of truth for the idle-expiry
// decision. Both the on-demand status path and the background reaper call
// ShouldExpire so the two paths can never disagree on the threshold.

// Inactivity returns the whole seconds elapsed between lastAccessed and now.
// Computed at query time, never cached.
func Inactivity(lastAccessed, now time.Time) time.Duration {
	d := now.Sub(lastAccessed)
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}

// ShouldExpire reports whether an Active session whose inactivity has reached
// idleTimeout must transition to ClosedBySystem. Terminal sessions never expire again.
func ShouldExpire(status Status, lastAccessed, now time.Time, idleTimeout time.Duration) bool {
	if status != StatusActive {
		return false
	}
	return Inactivity(lastAccessed, now) >= idleTimeout
}

// Expire applies the system-close transition in place: status becomes
// ClosedBySystem and LastAccessed is set to the transition time. Callers must
// have checked ShouldExpire first.
func Expire(s *Session, now time.Time) {
	s.Status = StatusClosedBySystem
	s.LastAccessed = now
}

// Close applies the user-close transition in place: status becomes
// ClosedByUser and LastAccessed is set to the logout time.
func Close(s *Session, now time.Time) {
	s.Status = StatusClosedByUser
	s.LastAccessed = now
}

// Touch refreshes LastAccessed on an Active session. LastAccessed never moves
// backwards even if the supplied time does.
func Touch(s *Session, now time.Time) {
	if now.After(s.LastAccessed) {
		s.LastAccessed = now
	}
}
