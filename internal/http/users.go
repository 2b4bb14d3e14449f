package http

import (
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/whispered/usersd/internal/auth"
	"github.com/whispered/usersd/internal/config"
	"github.com/whispered/usersd/internal/database/audit"
	"github.com/whispered/usersd/internal/database/users"
	"github.com/whispered/usersd/internal/entities"
	"github.com/whispered/usersd/internal/sessioncache"
)

// usernamePattern mirrors the registration schema: 3-30 alphanumeric
// characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,30}$`)

// UsersController handles registration, login, logout, and lookup.
type UsersController struct {
	users  *users.Repository
	audit  *audit.Repository
	cache  sessioncache.Cache
	tokens *auth.TokenIssuer
	config config.Auth
}

func NewUsersController(repo *users.Repository, auditRepo *audit.Repository, cache sessioncache.Cache, tokens *auth.TokenIssuer, cfg config.Auth) *UsersController {
	return &UsersController{
		users:  repo,
		audit:  auditRepo,
		cache:  cache,
		tokens: tokens,
		config: cfg,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Token    bool   `json:"token"`
}

// Login handles POST /api/users/session.
//
// An already-authenticated caller is rejected. Unknown usernames and
// wrong passwords produce the same 401 so the endpoint does not reveal
// whether an account exists. On success the caller either receives a
// signed bearer token (token:true) or a session cookie backed by a
// cache entry.
func (uc *UsersController) Login(c *gin.Context) {
	if auth.IsAuthenticated(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Already authenticated."})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := uc.users.GetByUsername(req.Username)
	if err != nil {
		if err == users.ErrNotFound {
			uc.logAuthEvent(c, entities.AuditEventLoginFailed, 0, req.Username, "unknown username")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Username or Password is incorrect"})
			return
		}
		respondDatabaseError(c, err, "login lookup")
		return
	}

	if err := auth.CheckPassword(req.Password, user.PasswordHash); err != nil {
		uc.logAuthEvent(c, entities.AuditEventLoginFailed, user.ID, user.Username, "wrong password")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Username or Password is incorrect"})
		return
	}

	snapshot := user.Snapshot()

	if req.Token {
		signed, err := uc.tokens.Issue(user.ID)
		if err != nil {
			log.Printf("token signing failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Session failed."})
			return
		}
		uc.logAuthEvent(c, entities.AuditEventLogin, user.ID, user.Username, "")
		c.JSON(http.StatusOK, gin.H{"token": signed})
		return
	}

	sid := auth.SessionID(user, uc.config.RandomSessionIDs)
	data, err := sessioncache.EncodeSession(sessioncache.Session{Account: snapshot})
	if err != nil {
		respondDatabaseError(c, err, "session encode")
		return
	}
	// ttl 0 means the cache's configured default
	if err := uc.cache.Set(c.Request.Context(), sid, data, 0); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session failed."})
		return
	}

	uc.setSessionCookie(c, sid)
	uc.logAuthEvent(c, entities.AuditEventLogin, user.ID, user.Username, "")
	c.JSON(http.StatusOK, gin.H{"loggedIn": true})
}

// Logout handles GET /api/users/unsession. Only a session-authenticated
// caller can log out: a bearer token has no server-side state to drop.
func (uc *UsersController) Logout(c *gin.Context) {
	identity := auth.CurrentIdentity(c)
	if identity == nil || identity.Method != auth.MethodSession {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated."})
		return
	}

	if err := uc.cache.Drop(c.Request.Context(), identity.SessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session failed."})
		return
	}

	uc.clearSessionCookie(c)
	uc.logAuthEvent(c, entities.AuditEventLogout, identity.User.ID, identity.User.Username, "")
	c.JSON(http.StatusOK, gin.H{"loggedOut": true})
}

// Register handles POST /api/users. Only an authenticated caller may
// create accounts; there is no open self-service signup. The existence
// check and the insert are not atomic, so concurrent registrations of
// the same username can both succeed.
func (uc *UsersController) Register(c *gin.Context) {
	if !auth.IsAuthenticated(c) {
		respondAuthRequired(c)
		return
	}

	payload, ok := uc.bindRegisterPayload(c)
	if !ok {
		return
	}

	exists, err := uc.users.Exists(payload.username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":       "Database error.",
			"userCreated": false,
		})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{
			"error":       "Username already exists.",
			"userCreated": false,
		})
		return
	}

	hash, err := auth.HashPassword(payload.password, uc.config.BcryptCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":       "Could not create user.",
			"userCreated": false,
		})
		return
	}

	user := &entities.User{
		Username:     payload.username,
		PasswordHash: hash,
		Extra:        payload.extra,
	}
	if err := uc.users.Create(user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":       "Could not create user.",
			"userCreated": false,
		})
		return
	}

	uc.logAuthEvent(c, entities.AuditEventUserCreated, user.ID, user.Username, "")
	c.JSON(http.StatusOK, gin.H{"userCreated": true})
}

// GetUser handles GET /api/users/:username.
func (uc *UsersController) GetUser(c *gin.Context) {
	if !auth.IsAuthenticated(c) {
		respondAuthRequired(c)
		return
	}

	user, err := uc.users.GetByUsername(c.Param("username"))
	if err != nil {
		if err == users.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "User does not exist."})
			return
		}
		respondDatabaseError(c, err, "get user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.Snapshot()})
}

// Update handles PUT /api/users. The route is declared with auth
// checking but carries no behavior yet; it accepts the request and does
// nothing observable.
func (uc *UsersController) Update(c *gin.Context) {
	if !auth.IsAuthenticated(c) {
		respondAuthRequired(c)
		return
	}
	c.Status(http.StatusOK)
}

// Delete handles DELETE /api/users. Like Update, a declared no-op.
func (uc *UsersController) Delete(c *gin.Context) {
	if !auth.IsAuthenticated(c) {
		respondAuthRequired(c)
		return
	}
	c.Status(http.StatusOK)
}

type registerPayload struct {
	username string
	password string
	extra    map[string]any
}

// bindRegisterPayload validates the registration body: required
// username (3-30 alphanumeric) and password, plus any fields named in
// the configured allow-list. Unknown fields are rejected, matching the
// strict schema of the route table.
func (uc *UsersController) bindRegisterPayload(c *gin.Context) (registerPayload, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return registerPayload{}, false
	}

	username, _ := body["username"].(string)
	if !usernamePattern.MatchString(username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username must be 3-30 alphanumeric characters"})
		return registerPayload{}, false
	}

	password, _ := body["password"].(string)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return registerPayload{}, false
	}

	allowed := make(map[string]bool, len(uc.config.ExtraFields))
	for _, f := range uc.config.ExtraFields {
		allowed[f] = true
	}

	var extra map[string]any
	for key, value := range body {
		if key == "username" || key == "password" {
			continue
		}
		if !allowed[key] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown field: " + key})
			return registerPayload{}, false
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key] = value
	}

	return registerPayload{
		username: strings.ToLower(username),
		password: password,
		extra:    extra,
	}, true
}

func (uc *UsersController) setSessionCookie(c *gin.Context, sid string) {
	maxAge := int(uc.config.Expire.Seconds())
	c.SetCookie(uc.config.CookieName, sid, maxAge, "/", "", uc.config.SecureCookies, true)
}

func (uc *UsersController) clearSessionCookie(c *gin.Context) {
	c.SetCookie(uc.config.CookieName, "", -1, "/", "", uc.config.SecureCookies, true)
}

// logAuthEvent records an audit event, best effort. Audit failures are
// logged and never affect the response.
func (uc *UsersController) logAuthEvent(c *gin.Context, eventType entities.AuditEventType, userID uint, username, errMsg string) {
	if uc.audit == nil {
		return
	}

	status := entities.AuditStatusSuccess
	if errMsg != "" {
		status = entities.AuditStatusFailed
	}

	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: eventType,
		Username:  strings.ToLower(username),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Status:    status,
		ErrorMsg:  errMsg,
	}
	if err := uc.audit.LogEvent(event); err != nil {
		logAuditFailure(err)
	}
}
