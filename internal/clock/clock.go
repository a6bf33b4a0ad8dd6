// Package clock abstracts time so inactivity arithmetic is testable without real delays.
package clock

import "time"

// Clock supplies the current time. Production code uses System; tests inject a fake.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by time.Now in UTC.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC() }
