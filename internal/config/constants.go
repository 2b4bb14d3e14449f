package config

const (
	// DefaultDatabasePath is the default path for the users database.
	DefaultDatabasePath = "./usersd.db"

	// DefaultCookieName is the session cookie set on password login.
	DefaultCookieName = "users_session"
)
