package entities

import (
	"time"
)

// User is a registered account. PasswordHash is never serialized into
// JSON responses; it is also stripped before the account snapshot is
// written to the session cache.
//
// Username uniqueness is enforced by a pre-insert existence check in the
// registration handler, not by a database constraint. Concurrent
// registrations with the same username can therefore both succeed.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"index;size:30" json:"username"`
	PasswordHash string         `gorm:"size:100" json:"-"`
	Extra        map[string]any `gorm:"serializer:json" json:"extra,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Snapshot returns a copy of the user safe to cache or return to
// clients: the password hash is cleared.
func (u User) Snapshot() User {
	u.PasswordHash = ""
	return u
}
