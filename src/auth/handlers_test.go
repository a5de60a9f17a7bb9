package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/aromapulse/authgate/src/config"
	"github.com/aromapulse/authgate/src/middleware"
	"github.com/aromapulse/authgate/src/models"
)

func setupRouter(t *testing.T) (*gin.Engine, *testEnv) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := newTestEnv(t)
	h := NewHandler(env.svc, env.cfg, config.AppConfig{LoginPath: "/login"}, nil)
	authMW := middleware.NewAuthMiddleware(env.tokens, env.cfg.CookieName, nil, nil)

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/auth"), authMW, nil)

	return r, env
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func jsonRequest(method, path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func startLogin(t *testing.T, r *gin.Engine, env *testEnv, returnTo string) (*http.Cookie, string) {
	t.Helper()
	env.naver.On("AuthorizationURL", mock.Anything).Return("https://nid.naver.com/oauth2.0/authorize").Once()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/auth/naver?returnTo="+url.QueryEscape(returnTo), nil))
	require.Equal(t, http.StatusFound, w.Code)

	stateCookie := findCookie(w, "oauth_state")
	require.NotNil(t, stateCookie)
	return stateCookie, stateCookie.Value
}

func TestHandler_LoginRedirects(t *testing.T) {
	r, env := setupRouter(t)
	stateCookie, state := startLogin(t, r, env, "/shop")

	assert.True(t, stateCookie.HttpOnly)
	assert.Equal(t, 600, stateCookie.MaxAge)
	assert.Equal(t, "/api/auth", stateCookie.Path)
	env.naver.AssertCalled(t, "AuthorizationURL", state)
}

func TestHandler_LoginUnknownProvider(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/auth/facebook", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_CallbackSuccess(t *testing.T) {
	r, env := setupRouter(t)
	stateCookie, state := startLogin(t, r, env, "/shop")

	env.naver.On("Exchange", mock.Anything, "the-code", state).Return(&oauth2.Token{AccessToken: "at"}, nil)
	env.naver.On("FetchProfile", mock.Anything, "at").
		Return(&models.Profile{ID: "n-7", Email: "hong@naver.com", Name: "홍길동"}, nil)

	req := httptest.NewRequest("GET", "/api/auth/naver/callback?code=the-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(stateCookie)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/shop", w.Header().Get("Location"))

	authCookie := findCookie(w, "auth_token")
	require.NotNil(t, authCookie)
	assert.True(t, authCookie.HttpOnly)
	assert.Equal(t, 604800, authCookie.MaxAge)

	claims, err := env.tokens.Parse(authCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "홍길동", claims.Name)
	assert.Equal(t, models.ProviderNaver, claims.Provider)
}

func TestHandler_CallbackWithoutBrowserBinding(t *testing.T) {
	r, env := setupRouter(t)
	_, state := startLogin(t, r, env, "/")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/auth/naver/callback?code=c&state="+url.QueryEscape(state), nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?error=csrf_suspected", w.Header().Get("Location"))
	assert.Nil(t, findCookie(w, "auth_token"))
	env.naver.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_CallbackStateMismatch(t *testing.T) {
	r, env := setupRouter(t)
	stateCookie, _ := startLogin(t, r, env, "/")

	req := httptest.NewRequest("GET", "/api/auth/naver/callback?code=c&state=attacker-state", nil)
	req.AddCookie(stateCookie)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "/login?error=csrf_suspected", w.Header().Get("Location"))
	env.naver.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_CallbackForgedPair(t *testing.T) {
	r, env := setupRouter(t)

	// Cookie and query agree, but the state was never issued.
	req := httptest.NewRequest("GET", "/api/auth/naver/callback?code=c&state=made-up", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "made-up"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "/login?error=csrf_suspected", w.Header().Get("Location"))
	env.naver.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_CallbackProviderError(t *testing.T) {
	r, env := setupRouter(t)
	stateCookie, state := startLogin(t, r, env, "/")

	req := httptest.NewRequest("GET", "/api/auth/naver/callback?error=access_denied&state="+url.QueryEscape(state), nil)
	req.AddCookie(stateCookie)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "/login?error=login_failed", w.Header().Get("Location"))
}

func TestHandler_CallbackExchangeFailure(t *testing.T) {
	r, env := setupRouter(t)
	stateCookie, state := startLogin(t, r, env, "/")
	env.naver.On("Exchange", mock.Anything, "bad-code", state).Return(nil, assert.AnError)

	req := httptest.NewRequest("GET", "/api/auth/naver/callback?code=bad-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(stateCookie)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "/login?error=login_failed", w.Header().Get("Location"))
	assert.NotContains(t, w.Header().Get("Location"), assert.AnError.Error())
}

func TestHandler_RegisterAndPasswordLogin(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/api/auth/register", gin.H{"email": "kim@example.com", "name": "김철수", "password": "password123"}))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/api/auth/register", gin.H{"email": "kim@example.com", "password": "password123"}))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/api/auth/register", gin.H{"email": "x@example.com", "password": "short"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", gin.H{"email": "kim@example.com", "password": "password123"}))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Token)
	require.NotNil(t, findCookie(w, "auth_token"))
	assert.Equal(t, body.Token, findCookie(w, "auth_token").Value)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", gin.H{"email": "kim@example.com", "password": "nope-nope"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", gin.H{"email": "kim@example.com"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_MeAndLogout(t *testing.T) {
	r, env := setupRouter(t)
	_, err := env.svc.Register(t.Context(), "yoon@example.com", "윤서연", "password123")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/auth/me", nil))
	assert.JSONEq(t, `{"authenticated":false,"user":null}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", gin.H{"email": "yoon@example.com", "password": "password123"}))
	authCookie := findCookie(w, "auth_token")
	require.NotNil(t, authCookie)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(authCookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var me struct {
		Authenticated bool `json:"authenticated"`
		User          struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.True(t, me.Authenticated)
	assert.Equal(t, "yoon@example.com", me.User.Email)
	assert.Equal(t, "user", me.User.Role)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/auth/logout", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cleared := findCookie(w, "auth_token")
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)

	// A copy of the token taken before logout keeps working until it expires.
	req = httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+authCookie.Value)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"authenticated":true`)
}

func TestHandler_LogoutViaGet(t *testing.T) {
	r, env := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/auth/logout", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Logged out successfully")
	cleared := findCookie(w, "auth_token")
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)
	env.naver.AssertNotCalled(t, "AuthorizationURL", mock.Anything)
}

func TestHandler_Providers(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/auth/providers", nil))
	assert.JSONEq(t, `{"providers":["kakao","naver"]}`, w.Body.String())
}
