package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/whispered/usersd/internal/auth"
	"github.com/whispered/usersd/internal/config"
	"github.com/whispered/usersd/internal/database/audit"
	"github.com/whispered/usersd/internal/database/users"
	"github.com/whispered/usersd/internal/entities"
	"github.com/whispered/usersd/internal/sessioncache"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	repo   *users.Repository
	audit  *audit.Repository
	cache  *sessioncache.Memory
	tokens *auth.TokenIssuer
	cfg    config.Auth
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}, &entities.AuditEvent{}))

	cfg := config.Auth{
		CookieName:     "users_session",
		SessionSecret:  "test-secret",
		SessionEnabled: true,
		TokenEnabled:   true,
		BcryptCost:     4, // low cost for faster tests
		Expire:         time.Hour,
		ExtraFields:    []string{"name", "team"},
	}

	repo := users.NewRepository(db)
	auditRepo := audit.NewRepository(db)
	cache := sessioncache.NewMemory(cfg.Expire)
	tokens := auth.NewTokenIssuer(cfg.SessionSecret, cfg.Expire)
	orchestrator := auth.NewOrchestrator(repo, cache, tokens, cfg)

	router := NewRouter(RouterConfig{
		Users:        repo,
		Audit:        auditRepo,
		Cache:        cache,
		Tokens:       tokens,
		Orchestrator: orchestrator,
		AuthConfig:   cfg,
		Version:      "test",
	})

	return &testEnv{
		router: router,
		repo:   repo,
		audit:  auditRepo,
		cache:  cache,
		tokens: tokens,
		cfg:    cfg,
	}
}

func (e *testEnv) seedUser(t *testing.T, username, password string) *entities.User {
	t.Helper()

	hash, err := auth.HashPassword(password, e.cfg.BcryptCost)
	require.NoError(t, err)

	user := &entities.User{Username: username, PasswordHash: hash}
	require.NoError(t, e.repo.Create(user))
	return user
}

func (e *testEnv) do(t *testing.T, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if mutate != nil {
		mutate(req)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// login performs a password login and returns the session cookie.
func (e *testEnv) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/api/users/session",
		`{"username":"`+username+`","password":"`+password+`"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, "login failed: %s", rr.Body.String())

	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == e.cfg.CookieName {
			return cookie
		}
	}
	t.Fatal("login response did not set a session cookie")
	return nil
}

func withCookie(cookie *http.Cookie) func(*http.Request) {
	return func(req *http.Request) { req.AddCookie(cookie) }
}

func withBearer(token string) func(*http.Request) {
	return func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }
}

func TestLoginLogoutScenario(t *testing.T) {
	env := setupEnv(t)
	admin := env.seedUser(t, "admin", "hunter2hunter2")
	adminCookie := env.login(t, "admin", "hunter2hunter2")

	// The session cache key is the lower-cased username + account id
	expectedSID := "admin" + strconv.FormatUint(uint64(admin.ID), 10)
	assert.Equal(t, expectedSID, adminCookie.Value)
	_, err := env.cache.Get(context.Background(), expectedSID)
	assert.NoError(t, err, "login should have created a cache entry")

	// Register alice while authenticated
	rr := env.do(t, http.MethodPost, "/api/users",
		`{"username":"alice","password":"secret123"}`, withCookie(adminCookie))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"userCreated":true}`, rr.Body.String())

	// Registering alice again conflicts
	rr = env.do(t, http.MethodPost, "/api/users",
		`{"username":"Alice","password":"other"}`, withCookie(adminCookie))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), `"userCreated":false`)

	// Login as alice
	aliceCookie := env.login(t, "alice", "secret123")

	// Fetch alice with her cookie; no password field anywhere
	rr = env.do(t, http.MethodGet, "/api/users/alice", "", withCookie(aliceCookie))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"username":"alice"`)
	assert.NotContains(t, strings.ToLower(rr.Body.String()), "password")

	// Logout drops the cache entry
	rr = env.do(t, http.MethodGet, "/api/users/unsession", "", withCookie(aliceCookie))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"loggedOut":true}`, rr.Body.String())

	// The same cookie no longer authenticates
	rr = env.do(t, http.MethodGet, "/api/users/alice", "", withCookie(aliceCookie))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogin_TokenMode(t *testing.T) {
	env := setupEnv(t)
	user := env.seedUser(t, "alice", "secret123")

	rr := env.do(t, http.MethodPost, "/api/users/session",
		`{"username":"alice","password":"secret123","token":true}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	// The token verifies and carries the user id
	userID, err := env.tokens.Verify(body.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	// No session state was created
	assert.Zero(t, env.cache.Len(), "token login must not create a cache entry")
	assert.Empty(t, rr.Result().Cookies(), "token login must not set a cookie")

	// The token authenticates a protected route
	rr = env.do(t, http.MethodGet, "/api/users/alice", "", withBearer(body.Token))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLogin_IncorrectCredentialsDoNotLeakExistence(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "alice", "secret123")

	wrongPassword := env.do(t, http.MethodPost, "/api/users/session",
		`{"username":"alice","password":"nope"}`, nil)
	unknownUser := env.do(t, http.MethodPost, "/api/users/session",
		`{"username":"nobody","password":"nope"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	// Identical bodies: the endpoint must not reveal whether the
	// username exists.
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestLogin_AlreadyAuthenticated(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "alice", "secret123")
	cookie := env.login(t, "alice", "secret123")

	rr := env.do(t, http.MethodPost, "/api/users/session",
		`{"username":"alice","password":"secret123"}`, withCookie(cookie))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Already authenticated.")
}

func TestLogin_MissingFields(t *testing.T) {
	env := setupEnv(t)

	rr := env.do(t, http.MethodPost, "/api/users/session", `{"username":"alice"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogin_CaseInsensitiveUsername(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "alice", "secret123")

	rr := env.do(t, http.MethodPost, "/api/users/session",
		`{"username":"ALICE","password":"secret123"}`, nil)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestRegister_Unauthenticated(t *testing.T) {
	env := setupEnv(t)

	rr := env.do(t, http.MethodPost, "/api/users",
		`{"username":"alice","password":"secret123"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRegister_InvalidUsername(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "admin", "hunter2hunter2")
	cookie := env.login(t, "admin", "hunter2hunter2")

	for _, username := range []string{"ab", "has space", "way-too-long-username-over-thirty-chars", "dash-ed"} {
		rr := env.do(t, http.MethodPost, "/api/users",
			`{"username":"`+username+`","password":"secret123"}`, withCookie(cookie))
		assert.Equal(t, http.StatusBadRequest, rr.Code, "username %q should be rejected", username)
	}
}

func TestRegister_ExtraFields(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "admin", "hunter2hunter2")
	cookie := env.login(t, "admin", "hunter2hunter2")

	// Allowed extra fields are stored
	rr := env.do(t, http.MethodPost, "/api/users",
		`{"username":"alice","password":"secret123","name":"Alice","team":"ops"}`, withCookie(cookie))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	user, err := env.repo.GetByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Extra["name"])
	assert.Equal(t, "ops", user.Extra["team"])

	// Fields outside the allow-list are rejected
	rr = env.do(t, http.MethodPost, "/api/users",
		`{"username":"bob","password":"secret123","role":"admin"}`, withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetUser_NotFound(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "alice", "secret123")
	cookie := env.login(t, "alice", "secret123")

	rr := env.do(t, http.MethodGet, "/api/users/nobody", "", withCookie(cookie))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "User does not exist.")
}

func TestGetUser_Unauthenticated(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "alice", "secret123")

	rr := env.do(t, http.MethodGet, "/api/users/alice", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout_RequiresSessionStrategy(t *testing.T) {
	env := setupEnv(t)
	user := env.seedUser(t, "alice", "secret123")

	// Unauthenticated
	rr := env.do(t, http.MethodGet, "/api/users/unsession", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Token-authenticated: there is no server-side session to drop
	signed, err := env.tokens.Issue(user.ID)
	require.NoError(t, err)
	rr = env.do(t, http.MethodGet, "/api/users/unsession", "", withBearer(signed))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdateAndDelete_AreNoOps(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "alice", "secret123")
	cookie := env.login(t, "alice", "secret123")

	rr := env.do(t, http.MethodPut, "/api/users", `{"username":"alice"}`, withCookie(cookie))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/users", `{"id":"1"}`, withCookie(cookie))
	assert.Equal(t, http.StatusOK, rr.Code)

	// Nothing observable happened
	user, err := env.repo.GetByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	// Both still require authentication
	rr = env.do(t, http.MethodPut, "/api/users", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = env.do(t, http.MethodDelete, "/api/users", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthEventsAreAudited(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "alice", "secret123")

	// A failed and a successful login
	env.do(t, http.MethodPost, "/api/users/session",
		`{"username":"alice","password":"wrong"}`, nil)
	env.login(t, "alice", "secret123")

	events, total, err := env.audit.GetEvents(0, 50, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	types := []entities.AuditEventType{events[0].EventType, events[1].EventType}
	assert.Contains(t, types, entities.AuditEventLogin)
	assert.Contains(t, types, entities.AuditEventLoginFailed)
}

func TestHealth(t *testing.T) {
	env := setupEnv(t)

	rr := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}
