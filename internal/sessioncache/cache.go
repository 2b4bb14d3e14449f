// Package sessioncache is the server-side session store: a TTL
// key-value cache mapping an opaque session identifier to a cached
// account snapshot. Backends are pluggable; all of them are safe for
// concurrent use.
package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/whispered/usersd/internal/entities"
)

// ErrNotFound is returned by Get when the identifier has no live entry.
// It is distinct from backend failures: a miss means "not
// authenticated", a backend error is a dependency failure the caller
// surfaces as a 500.
var ErrNotFound = errors.New("session not found")

// Cache is the contract every backend implements. A ttl of zero or less
// on Set means "use the backend's configured default TTL".
type Cache interface {
	Get(ctx context.Context, sid string) ([]byte, error)
	Set(ctx context.Context, sid string, data []byte, ttl time.Duration) error
	Drop(ctx context.Context, sid string) error
}

// Session is the payload stored under a session identifier.
type Session struct {
	Account entities.User `json:"account"`
}

// EncodeSession marshals a session payload for storage.
func EncodeSession(s Session) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSession unmarshals a stored session payload.
func DecodeSession(data []byte) (Session, error) {
	var s Session
	err := json.Unmarshal(data, &s)
	return s, err
}
