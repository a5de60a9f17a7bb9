package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aromapulse/authgate/src/models"
)

const (
	dateLayout          = "2006-01-02"
	defaultStatsDays    = 7
	maxStatsDays        = 365
	defaultUserLogLimit = 20
	defaultDaysToKeep   = 90
)

// LoginLogHandler serves the admin login-log endpoints.
type LoginLogHandler struct {
	store  models.LoginLogStore
	logger *zap.Logger
	now    func() time.Time
}

func NewLoginLogHandler(store models.LoginLogStore, logger *zap.Logger) *LoginLogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginLogHandler{
		store:  store,
		logger: logger.With(zap.String("component", "login_logs.handler")),
		now:    time.Now,
	}
}

type cleanupRequest struct {
	DaysToKeep int `json:"days_to_keep"`
}

// List returns login logs filtered by user_id, device_type, start_date and end_date.
func (h *LoginLogHandler) List(c *gin.Context) {
	filter := models.LoginLogFilter{
		DeviceType: c.Query("device_type"),
		Limit:      queryInt(c, "limit", 0),
		Offset:     queryInt(c, "offset", 0),
	}

	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
			return
		}
		filter.UserID = id
	}

	var err error
	if filter.Since, err = queryDate(c, "start_date"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date, expected YYYY-MM-DD"})
		return
	}
	if filter.Until, err = queryDate(c, "end_date"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date, expected YYYY-MM-DD"})
		return
	}
	// end_date is inclusive of the whole day.
	if !filter.Until.IsZero() {
		filter.Until = filter.Until.Add(24*time.Hour - time.Nanosecond)
	}

	h.respondList(c, filter)
}

// ByUser returns the most recent logins of one user.
func (h *LoginLogHandler) ByUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	h.respondList(c, models.LoginLogFilter{
		UserID: id,
		Limit:  queryInt(c, "limit", defaultUserLogLimit),
	})
}

func (h *LoginLogHandler) respondList(c *gin.Context, filter models.LoginLogFilter) {
	logs, total, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list login logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load login logs"})
		return
	}
	if logs == nil {
		logs = []models.LoginLog{}
	}

	limit, offset := filter.Page()
	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Stats aggregates logins over the last ?days (default 7).
func (h *LoginLogHandler) Stats(c *gin.Context) {
	days := queryInt(c, "days", defaultStatsDays)
	if days <= 0 || days > maxStatsDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
		return
	}

	since := h.now().AddDate(0, 0, -days)
	stats, err := h.store.Stats(c.Request.Context(), since)
	if err != nil {
		h.logger.Error("login stats", zap.Int("days", days), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load login stats"})
		return
	}
	stats.PeriodDays = days

	c.JSON(http.StatusOK, stats)
}

// Cleanup deletes logs older than days_to_keep (default 90).
func (h *LoginLogHandler) Cleanup(c *gin.Context) {
	req := cleanupRequest{DaysToKeep: defaultDaysToKeep}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	if req.DaysToKeep <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days_to_keep must be positive"})
		return
	}

	cutoff := h.now().AddDate(0, 0, -req.DaysToKeep)
	deleted, err := h.store.DeleteBefore(c.Request.Context(), cutoff)
	if err != nil {
		h.logger.Error("cleanup login logs", zap.Time("cutoff", cutoff), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clean up login logs"})
		return
	}

	h.logger.Info("login logs cleaned up", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	c.JSON(http.StatusOK, gin.H{
		"message":       "Old login logs deleted",
		"cutoff_date":   cutoff,
		"deleted_count": deleted,
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryDate(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, raw)
}
