package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http/cookie"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/hasher"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/jwt"
	appsvc "github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/validation"
	authErrors "github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/infra/config"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/infra/metrics"
	"github.com/alexedwards/argon2id"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func (m *memUsers) CreateUser(_ context.Context, u model.User) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.users {
		if v.Email == u.Email || v.Username == u.Username {
			return uuid.Nil, authErrors.ErrAlreadyExists
		}
	}
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	m.users[u.ID] = u
	return u.ID, nil
}

func (m *memUsers) find(match func(model.User) bool) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.users {
		if match(v) {
			return v, nil
		}
	}
	return model.User{}, authErrors.ErrNotFound
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	return m.find(func(u model.User) bool { return u.Email == email })
}

func (m *memUsers) GetUserByID(_ context.Context, id uuid.UUID) (model.User, error) {
	return m.find(func(u model.User) bool { return u.ID == id })
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	return m.find(func(u model.User) bool { return u.Username == username })
}

func (m *memUsers) SetRefreshToken(_ context.Context, id uuid.UUID, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return authErrors.ErrNotFound
	}
	u.RefreshToken = token
	m.users[id] = u
	return nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return authErrors.ErrNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

type env struct {
	router *gin.Engine
	reg    *prometheus.Registry
}

func newEnv(t *testing.T, health map[string]HealthCheck) env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    24 * time.Hour,
		RepoTimeout:        time.Second,
		AllowedOrigins:     []string{"http://localhost:3000"},
		AllowCredentials:   true,
	}
	tokens, err := jwt.NewJWTUtil(cfg)
	require.NoError(t, err)

	params := &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	svc, err := appsvc.New(&memUsers{users: map[uuid.UUID]model.User{}}, nil, tokens,
		hasher.NewArgon2idHasherWithParams("", params), cfg, validation.New(), zap.NewNop())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	router := NewRouter(Deps{
		Config:   cfg,
		Service:  svc,
		Tokens:   tokens,
		Cookies:  cookie.NewTransport("", false),
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Health:   health,
		Log:      zap.NewNop(),
	})
	return env{router: router, reg: reg}
}

type reply struct {
	code    int
	body    map[string]any
	cookies map[string]*http.Cookie
}

func (e env) do(t *testing.T, method, path string, payload any, cookies ...*http.Cookie) reply {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := payload.(string); ok {
		buf.WriteString(s)
	} else if payload != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	r := reply{code: w.Code, cookies: map[string]*http.Cookie{}}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &r.body)
	}
	for _, c := range w.Result().Cookies() {
		r.cookies[c.Name] = c
	}
	return r
}

var ann = map[string]string{
	"name":             "Ann",
	"username":         "ann_dev1",
	"email":            "ann@x.com",
	"password":         "Str0ng!Pw",
	"confirm_password": "Str0ng!Pw",
}

var annLogin = map[string]string{"username": "ann_dev1", "password": "Str0ng!Pw"}

func (e env) login(t *testing.T) reply {
	t.Helper()
	r := e.do(t, http.MethodPost, "/api/auth/login", annLogin)
	require.Equal(t, http.StatusOK, r.code)
	return r
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestRouter_RegisterAnn(t *testing.T) {
	e := newEnv(t, nil)

	r := e.do(t, http.MethodPost, "/api/auth/register", ann)
	require.Equal(t, http.StatusOK, r.code)
	require.Equal(t, true, r.body["ok"])

	data := r.body["data"].(map[string]any)
	require.ElementsMatch(t, []string{"id", "name", "username", "email"}, keys(data))
	require.Equal(t, "Ann", data["name"])
	require.Equal(t, "ann_dev1", data["username"])
	require.Equal(t, "ann@x.com", data["email"])
	require.Empty(t, r.cookies, "registration sets no credentials")
}

func TestRouter_LoginSetsBothCookies(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, http.MethodPost, "/api/auth/register", ann)

	r := e.login(t)
	data := r.body["data"].(map[string]any)
	require.ElementsMatch(t, []string{"id", "username", "email"}, keys(data))

	access, refresh := r.cookies[cookie.AccessName], r.cookies[cookie.RefreshName]
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	require.True(t, access.HttpOnly)
	require.True(t, refresh.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, access.SameSite)
	require.Equal(t, 900, access.MaxAge)
	require.Equal(t, 86400, refresh.MaxAge)

	me := e.do(t, http.MethodGet, "/api/user/info", nil, access)
	require.Equal(t, http.StatusOK, me.code)
	user := me.body["data"].(map[string]any)["user"].(map[string]any)
	require.Equal(t, data["id"], user["id"])
	require.ElementsMatch(t, []string{"id", "name", "username", "email", "created_at", "updated_at"}, keys(user))
}

func TestRouter_LoginFailuresLookAlike(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, http.MethodPost, "/api/auth/register", ann)

	unknown := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "nobody_here", "password": "Str0ng!Pw"})
	wrong := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "ann_dev1", "password": "Wr0ng!Pw"})

	require.Equal(t, http.StatusUnauthorized, unknown.code)
	require.Equal(t, unknown.code, wrong.code)
	require.Equal(t, unknown.body, wrong.body)
	require.Empty(t, wrong.cookies)
}

func TestRouter_RefreshFlow(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, http.MethodPost, "/api/auth/register", ann)
	r := e.login(t)

	renewed := e.do(t, http.MethodPost, "/api/auth/refresh-token", nil, r.cookies[cookie.RefreshName])
	require.Equal(t, http.StatusOK, renewed.code)
	require.NotNil(t, renewed.cookies[cookie.AccessName])
	require.Nil(t, renewed.cookies[cookie.RefreshName], "renewal leaves the refresh cookie alone")

	// refresh cookie deleted from the client
	missing := e.do(t, http.MethodPost, "/api/auth/refresh-token", nil, r.cookies[cookie.AccessName])
	require.Equal(t, http.StatusUnauthorized, missing.code)
}

func TestRouter_SecondLoginRevokesFirst(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, http.MethodPost, "/api/auth/register", ann)

	first := e.login(t)
	second := e.login(t)

	stale := e.do(t, http.MethodPost, "/api/auth/refresh-token", nil, first.cookies[cookie.RefreshName])
	require.Equal(t, http.StatusUnauthorized, stale.code)

	fresh := e.do(t, http.MethodPost, "/api/auth/refresh-token", nil, second.cookies[cookie.RefreshName])
	require.Equal(t, http.StatusOK, fresh.code)
}

func TestRouter_LogoutRevokesAndClears(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, http.MethodPost, "/api/auth/register", ann)
	r := e.login(t)

	out := e.do(t, http.MethodPost, "/api/auth/logout", nil, r.cookies[cookie.AccessName])
	require.Equal(t, http.StatusOK, out.code)
	for _, name := range []string{cookie.AccessName, cookie.RefreshName} {
		require.NotNil(t, out.cookies[name])
		require.Less(t, out.cookies[name].MaxAge, 0)
	}

	after := e.do(t, http.MethodPost, "/api/auth/refresh-token", nil, r.cookies[cookie.RefreshName])
	require.Equal(t, http.StatusUnauthorized, after.code)

	// logout requires an access credential
	anon := e.do(t, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusUnauthorized, anon.code)
}

func TestRouter_ValidationAndBadJSON(t *testing.T) {
	e := newEnv(t, nil)

	bad := map[string]string{}
	for k, v := range ann {
		bad[k] = v
	}
	bad["confirm_password"] = "Other!Pw1"
	bad["email"] = "nope"

	r := e.do(t, http.MethodPost, "/api/auth/register", bad)
	require.Equal(t, http.StatusUnprocessableEntity, r.code)
	require.Equal(t, "Validation error", r.body["message"])
	errs := r.body["errors"].(map[string]any)
	require.Equal(t, []any{"Passwords do not match"}, errs["confirm_password"])
	require.Equal(t, []any{"Invalid email format"}, errs["email"])

	r = e.do(t, http.MethodPost, "/api/auth/login", "{not json")
	require.Equal(t, http.StatusBadRequest, r.code)
	require.Equal(t, "Invalid JSON format", r.body["message"])
}

func TestRouter_DuplicateEmail(t *testing.T) {
	e := newEnv(t, nil)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/auth/register", ann).code)

	again := map[string]string{}
	for k, v := range ann {
		again[k] = v
	}
	again["username"] = "ann_second"

	r := e.do(t, http.MethodPost, "/api/auth/register", again)
	require.Equal(t, http.StatusConflict, r.code)
	require.Equal(t, "Email already in use.", r.body["message"])
}

func TestRouter_Health(t *testing.T) {
	up := newEnv(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	require.Equal(t, http.StatusOK, up.do(t, http.MethodGet, "/health", nil).code)

	down := newEnv(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	r := down.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, r.code)
	checks := r.body["data"].(map[string]any)["checks"].(map[string]any)
	require.Equal(t, "down", checks["redis"])
	require.Equal(t, "up", checks["postgres"])
}

func TestRouter_Metrics(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, http.MethodPost, "/api/auth/login", annLogin)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `session_auth_events_total{event="login",outcome="rejected"} 1`)
	require.Contains(t, w.Body.String(), "session_http_requests_total")
}
