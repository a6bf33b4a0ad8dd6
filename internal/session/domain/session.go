// Package domain holds the session record and its lifecycle state machine.
package domain

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusActive is the initial state set at login.
	StatusActive Status = "Active"
	// StatusClosedBySystem is terminal; set when inactivity reaches the idle threshold.
	StatusClosedBySystem Status = "ClosedBySystem"
	// StatusClosedByUser is terminal; set by an explicit logout.
	StatusClosedByUser Status = "ClosedByUser"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusClosedBySystem || s == StatusClosedByUser
}

// NetworkInfo is an IP and hardware address pair, captured for the client at
// login and for the server once at process start.
type NetworkInfo struct {
	IP  string
	MAC string
}

// Session is a server-side record tracking one interaction from login to closure.
// SessionID is immutable and never reused; LastAccessed is monotonically
// non-decreasing and never earlier than CreatedAt.
type Session struct {
	SessionID     string
	Email         string
	Nickname      string
	ClientNetwork NetworkInfo
	ServerNetwork NetworkInfo
	CreatedAt     time.Time
	LastAccessed  time.Time
	Status        Status
}

// ErrMissingFields is returned by Validate when required identity fields are empty.
var ErrMissingFields = errors.New("email, nickname, and clientMAC are required")

// Validate checks the record's required fields. Called on the login path before
// the record reaches the store.
func (s *Session) Validate() error {
	if strings.TrimSpace(s.Email) == "" ||
		strings.TrimSpace(s.Nickname) == "" ||
		strings.TrimSpace(s.ClientNetwork.MAC) == "" {
		return ErrMissingFields
	}
	if s.SessionID == "" {
		return errors.New("session id is empty")
	}
	if s.LastAccessed.Before(s.CreatedAt) {
		return errors.New("lastAccessed precedes createdAt")
	}
	return nil
}
