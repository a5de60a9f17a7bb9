package models

import "time"

// Provider identifies an OAuth identity provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderNaver  Provider = "naver"
	ProviderKakao  Provider = "kakao"
)

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderNaver, ProviderKakao:
		return true
	}
	return false
}

// Login methods recorded in the login log.
const (
	LoginMethodEmail = "email"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	ProfileImage string    `json:"profile_image,omitempty"`
	Role         string    `json:"role,omitempty"`
	IsOAuth      bool      `json:"is_oauth"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the provider-independent view of an OAuth user profile.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type LoginEvent struct {
	UserID         int64     `json:"user_id"`
	Email          string    `json:"email"`
	DeviceType     string    `json:"device_type"`
	OS             string    `json:"os"`
	Browser        string    `json:"browser"`
	BrowserVersion string    `json:"browser_version"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	LoginMethod    string    `json:"login_method"`
	LoginStatus    string    `json:"login_status"`
	SessionID      string    `json:"session_id"`
	LoginAt        time.Time `json:"login_at"`
}

type LoginLog struct {
	ID int64 `json:"id"`
	LoginEvent
}

type LoginLogFilter struct {
	UserID     int64
	DeviceType string
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

const (
	DefaultLogPageSize = 50
	MaxLogPageSize     = 500
)

// Page returns the limit and offset a query actually applies.
func (f LoginLogFilter) Page() (limit, offset int) {
	limit, offset = f.Limit, f.Offset
	if limit <= 0 {
		limit = DefaultLogPageSize
	}
	if limit > MaxLogPageSize {
		limit = MaxLogPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type DailyLoginStat struct {
	Date        string `json:"date"`
	LoginCount  int64  `json:"login_count"`
	UniqueUsers int64  `json:"unique_users"`
}

type GroupStat struct {
	Key         string `json:"key"`
	Count       int64  `json:"count"`
	UniqueUsers int64  `json:"unique_users,omitempty"`
}

type LoginStats struct {
	PeriodDays   int              `json:"period_days"`
	StartDate    time.Time        `json:"start_date"`
	DailyStats   []DailyLoginStat `json:"daily_stats"`
	DeviceStats  []GroupStat      `json:"device_stats"`
	MethodStats  []GroupStat      `json:"method_stats"`
	OSStats      []GroupStat      `json:"os_stats"`
	BrowserStats []GroupStat      `json:"browser_stats"`
}
