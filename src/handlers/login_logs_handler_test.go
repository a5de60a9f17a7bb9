package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aromapulse/authgate/src/mocks"
	"github.com/aromapulse/authgate/src/models"
)

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func setupLoginLogRouter() (*gin.Engine, *mocks.MockLoginLogStore) {
	gin.SetMode(gin.TestMode)

	store := new(mocks.MockLoginLogStore)
	h := NewLoginLogHandler(store, nil)
	h.now = func() time.Time { return fixedNow }

	r := gin.New()
	g := r.Group("/api/admin/login-logs")
	g.GET("", h.List)
	g.GET("/user/:id", h.ByUser)
	g.GET("/stats", h.Stats)
	g.DELETE("/cleanup", h.Cleanup)
	return r, store
}

func TestLoginLogHandler_ListFilters(t *testing.T) {
	r, store := setupLoginLogRouter()

	want := models.LoginLogFilter{
		UserID:     42,
		DeviceType: "mobile",
		Since:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Until:      time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		Limit:      10,
		Offset:     20,
	}
	logs := []models.LoginLog{{ID: 1, LoginEvent: models.LoginEvent{UserID: 42, DeviceType: "mobile"}}}
	store.On("List", mock.Anything, want).Return(logs, int64(31), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET",
		"/api/admin/login-logs?user_id=42&device_type=mobile&start_date=2025-03-01&end_date=2025-03-01&limit=10&offset=20", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Logs   []models.LoginLog `json:"logs"`
		Total  int64             `json:"total"`
		Limit  int               `json:"limit"`
		Offset int               `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Logs, 1)
	assert.Equal(t, int64(31), body.Total)
	assert.Equal(t, 10, body.Limit)
	assert.Equal(t, 20, body.Offset)
	store.AssertExpectations(t)
}

func TestLoginLogHandler_ListEmpty(t *testing.T) {
	r, store := setupLoginLogRouter()
	store.On("List", mock.Anything, models.LoginLogFilter{}).Return(nil, int64(0), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/login-logs", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"logs":[]`)
	assert.Contains(t, w.Body.String(), `"limit":50`)
}

func TestLoginLogHandler_ListReportsAppliedPage(t *testing.T) {
	r, store := setupLoginLogRouter()
	store.On("List", mock.Anything, models.LoginLogFilter{Limit: 10_000, Offset: -3}).Return(nil, int64(0), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/login-logs?limit=10000&offset=-3", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.MaxLogPageSize, body.Limit)
	assert.Equal(t, 0, body.Offset)
}

func TestLoginLogHandler_ListBadInput(t *testing.T) {
	r, store := setupLoginLogRouter()

	for _, q := range []string{"user_id=abc", "start_date=03/01/2025", "end_date=yesterday"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/login-logs?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
	store.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestLoginLogHandler_ListStoreError(t *testing.T) {
	r, store := setupLoginLogRouter()
	store.On("List", mock.Anything, mock.Anything).Return(nil, int64(0), errors.New("connection refused"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/login-logs", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestLoginLogHandler_ByUser(t *testing.T) {
	r, store := setupLoginLogRouter()
	store.On("List", mock.Anything, models.LoginLogFilter{UserID: 7, Limit: 20}).Return([]models.LoginLog{}, int64(0), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/login-logs/user/7", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/login-logs/user/zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	store.AssertExpectations(t)
}

func TestLoginLogHandler_Stats(t *testing.T) {
	r, store := setupLoginLogRouter()

	since := fixedNow.AddDate(0, 0, -30)
	store.On("Stats", mock.Anything, since).Return(&models.LoginStats{
		StartDate:   since,
		DeviceStats: []models.GroupStat{{Key: "desktop", Count: 5, UniqueUsers: 3}},
	}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/login-logs/stats?days=30", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var stats models.LoginStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 30, stats.PeriodDays)
	assert.Equal(t, "desktop", stats.DeviceStats[0].Key)
}

func TestLoginLogHandler_StatsDefaultsToWeek(t *testing.T) {
	r, store := setupLoginLogRouter()
	store.On("Stats", mock.Anything, fixedNow.AddDate(0, 0, -7)).Return(&models.LoginStats{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/login-logs/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"period_days":7`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/admin/login-logs/stats?days=0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginLogHandler_Cleanup(t *testing.T) {
	r, store := setupLoginLogRouter()
	store.On("DeleteBefore", mock.Anything, fixedNow.AddDate(0, 0, -30)).Return(int64(12), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/api/admin/login-logs/cleanup", bytes.NewBufferString(`{"days_to_keep":30}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		DeletedCount int64     `json:"deleted_count"`
		CutoffDate   time.Time `json:"cutoff_date"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(12), body.DeletedCount)
	assert.True(t, body.CutoffDate.Equal(fixedNow.AddDate(0, 0, -30)))
}

func TestLoginLogHandler_CleanupDefaults(t *testing.T) {
	r, store := setupLoginLogRouter()
	store.On("DeleteBefore", mock.Anything, fixedNow.AddDate(0, 0, -90)).Return(int64(0), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/admin/login-logs/cleanup", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/api/admin/login-logs/cleanup", bytes.NewBufferString(`{"days_to_keep":-1}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	store.AssertNumberOfCalls(t, "DeleteBefore", 1)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewHealthHandler(time.Second)
	h.Register("redis", pingFunc(func(context.Context) error { return nil }))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/health", nil)
	h.HealthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"up"`)

	h.Register("postgres", pingFunc(func(context.Context) error { return errors.New("down") }))
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/health", nil)
	h.HealthCheck(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), `"postgres":"down"`)
}
