package http

import (
	"github.com/whispered/usersd/internal/auth"
	"github.com/whispered/usersd/internal/config"
	"github.com/whispered/usersd/internal/database/audit"
	"github.com/whispered/usersd/internal/database/users"
	"github.com/whispered/usersd/internal/sessioncache"
)

// RouterConfig carries every dependency the router needs. Passing one
// struct keeps NewRouter's signature stable as wiring grows and makes
// tests straightforward to assemble.
type RouterConfig struct {
	Users        *users.Repository
	Audit        *audit.Repository
	Cache        sessioncache.Cache
	Tokens       *auth.TokenIssuer
	Orchestrator *auth.Orchestrator
	AuthConfig   config.Auth
	Version      string
}
