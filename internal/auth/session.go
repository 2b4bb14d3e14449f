package auth

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/whispered/usersd/internal/entities"
)

// SessionID derives the cache key for a newly created session.
//
// Legacy mode concatenates the lower-cased username and the account id,
// which keeps the cookie value stable across logins but makes it
// predictable and enumerable. Random mode issues a UUID per login
// instead; it is opt-in because switching changes the observable cookie
// value for existing clients.
func SessionID(user *entities.User, random bool) string {
	if random {
		return uuid.NewString()
	}
	return strings.ToLower(user.Username) + strconv.FormatUint(uint64(user.ID), 10)
}
