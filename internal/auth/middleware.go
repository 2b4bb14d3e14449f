// Package auth implements the credential-verification strategies: a
// stateful cookie session backed by the session cache, and a stateless
// signed bearer token. Both run in "try" mode; routes decide what an
// unauthenticated request is worth.
package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/whispered/usersd/internal/config"
	"github.com/whispered/usersd/internal/database/users"
	"github.com/whispered/usersd/internal/entities"
	"github.com/whispered/usersd/internal/sessioncache"
)

// Method indicates which strategy authenticated the request.
type Method string

const (
	MethodNone    Method = "none"
	MethodSession Method = "session"
	MethodToken   Method = "token"
)

// ContextKeyIdentity is the gin context key holding the *Identity.
const ContextKeyIdentity = "auth_identity"

// Identity is the resolved caller. SessionID is only set when the
// session strategy authenticated the request; logout needs it to drop
// the cache entry.
type Identity struct {
	User      *entities.User
	SessionID string
	Method    Method
}

// Orchestrator tries the enabled strategies against each request, in
// the order session then token, and stores the first successful
// identity in the request context. Neither strategy succeeding leaves
// the request unauthenticated rather than rejected: each route returns
// its own 401 where it requires authentication.
type Orchestrator struct {
	users  *users.Repository
	cache  sessioncache.Cache
	tokens *TokenIssuer
	config config.Auth
}

// NewOrchestrator wires the strategies to their dependencies.
func NewOrchestrator(repo *users.Repository, cache sessioncache.Cache, tokens *TokenIssuer, cfg config.Auth) *Orchestrator {
	return &Orchestrator{
		users:  repo,
		cache:  cache,
		tokens: tokens,
		config: cfg,
	}
}

// Handler returns the gin middleware running both strategies in try
// mode. A strategy is only attempted when its credential material is
// present on the request. Dependency failures (cache or credential
// store unreachable) abort with a 500: they are deliberately
// distinguishable from invalid credentials, which merely leave the
// request unauthenticated.
func (o *Orchestrator) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if o.config.SessionEnabled && o.cache != nil {
			if sid, err := c.Cookie(o.config.CookieName); err == nil && sid != "" {
				identity, err := o.resolveSession(c.Request.Context(), sid)
				if err != nil {
					log.Printf("session lookup failed: %v", err)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error": "Session failed.",
					})
					return
				}
				if identity != nil {
					c.Set(ContextKeyIdentity, identity)
					c.Next()
					return
				}
			}
		}

		if o.config.TokenEnabled && o.tokens != nil {
			if raw := bearerToken(c); raw != "" {
				identity, err := o.resolveToken(raw)
				if err != nil {
					log.Printf("token user lookup failed: %v", err)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error": "Database error.",
					})
					return
				}
				if identity != nil {
					c.Set(ContextKeyIdentity, identity)
					c.Next()
					return
				}
			}
		}

		c.Next()
	}
}

// resolveSession looks the session identifier up in the cache. A miss
// is not an error; a backend failure is.
func (o *Orchestrator) resolveSession(ctx context.Context, sid string) (*Identity, error) {
	data, err := o.cache.Get(ctx, sid)
	if err != nil {
		if err == sessioncache.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	sess, err := sessioncache.DecodeSession(data)
	if err != nil {
		return nil, err
	}

	return &Identity{
		User:      &sess.Account,
		SessionID: sid,
		Method:    MethodSession,
	}, nil
}

// resolveToken verifies the signature and re-fetches the referenced
// user: a token remains valid cryptographically until expiry, but the
// account may have been deleted since issuance.
func (o *Orchestrator) resolveToken(raw string) (*Identity, error) {
	userID, err := o.tokens.Verify(raw)
	if err != nil {
		return nil, nil
	}

	user, err := o.users.GetByID(userID)
	if err != nil {
		if err == users.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &Identity{
		User:   user,
		Method: MethodToken,
	}, nil
}

// bearerToken extracts the token from an "Authorization: Bearer x"
// header. A bare token without the scheme is accepted too.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return ""
}

// CurrentIdentity returns the identity stored by the orchestrator, or
// nil for an unauthenticated request.
func CurrentIdentity(c *gin.Context) *Identity {
	if v, exists := c.Get(ContextKeyIdentity); exists {
		if identity, ok := v.(*Identity); ok {
			return identity
		}
	}
	return nil
}

// IsAuthenticated reports whether either strategy succeeded.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentIdentity(c) != nil
}
