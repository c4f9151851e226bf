package domain

import "time"

// Record tracks consecutive failed logins for one identifier.
type Record struct {
	Identifier  string     `json:"identifier"`
	Count       int        `json:"count"`
	LastAttempt time.Time  `json:"last_attempt"`
	LockedUntil *time.Time `json:"locked_until,omitempty"` // nil until the threshold is reached
}

// LockedAt reports whether the record denies logins at now.
func (r *Record) LockedAt(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// LockExpiredAt reports whether the record was locked and the lock has lapsed at now.
func (r *Record) LockExpiredAt(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && !now.Before(*r.LockedUntil)
}

// Remaining returns how long the lock still holds at now; 0 when not locked.
func (r *Record) Remaining(now time.Time) time.Duration {
	if !r.LockedAt(now) {
		return 0
	}
	return r.LockedUntil.Sub(now)
}

// Clone returns a copy that shares no pointers with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.LockedUntil != nil {
		t := *r.LockedUntil
		out.LockedUntil = &t
	}
	return &out
}
