package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aromapulse/authgate/src/models"
)

var (
	_ models.AuditSink     = (*LoginLogRepo)(nil)
	_ models.LoginLogStore = (*LoginLogRepo)(nil)
)

const topGroupLimit = 10

// LoginLogRepo stores the login audit trail and answers the admin queries over it.
type LoginLogRepo struct {
	db *DB
}

func NewLoginLogRepo(db *DB) *LoginLogRepo { return &LoginLogRepo{db: db} }

const (
	loginLogColumns = `id, user_id, email, device_type, os, browser, browser_version,
       ip_address, user_agent, login_method, login_status, session_id, login_at`

	qLoginLogInsert = `
INSERT INTO user_login_logs (
    user_id, email, device_type, os, browser, browser_version,
    ip_address, user_agent, login_method, login_status, session_id, login_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

	qLoginLogDailyStats = `
SELECT to_char(login_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
       COUNT(*),
       COUNT(DISTINCT user_id)
FROM user_login_logs
WHERE login_at >= $1
GROUP BY day
ORDER BY day DESC;`

	qLoginLogDeleteBefore = `DELETE FROM user_login_logs WHERE login_at < $1;`
)

func (r *LoginLogRepo) Write(ctx context.Context, e *models.LoginEvent) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	loginAt := e.LoginAt
	if loginAt.IsZero() {
		loginAt = time.Now().UTC()
	}

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qLoginLogInsert,
		e.UserID, e.Email, e.DeviceType, e.OS, e.Browser, e.BrowserVersion,
		e.IPAddress, e.UserAgent, e.LoginMethod, e.LoginStatus, e.SessionID, loginAt,
	); err != nil {
		return fmt.Errorf("login log insert: %w", err)
	}
	return nil
}

func (r *LoginLogRepo) List(ctx context.Context, f models.LoginLogFilter) ([]models.LoginLog, int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	where, args := buildLogFilter(f)
	limit, offset := f.Page()

	q := r.db.execQueryer(ctx)

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM user_login_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("login log count: %w", err)
	}

	listSQL := `SELECT ` + loginLogColumns + ` FROM user_login_logs` + where +
		` ORDER BY login_at DESC, id DESC LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)

	rows, err := q.Query(ctx, listSQL, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("login log list: %w", err)
	}
	defer rows.Close()

	logs := make([]models.LoginLog, 0, limit)
	for rows.Next() {
		var l models.LoginLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Email, &l.DeviceType, &l.OS, &l.Browser, &l.BrowserVersion,
			&l.IPAddress, &l.UserAgent, &l.LoginMethod, &l.LoginStatus, &l.SessionID, &l.LoginAt); err != nil {
			return nil, 0, fmt.Errorf("scan login log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("login log rows: %w", err)
	}

	return logs, total, nil
}

func (r *LoginLogRepo) Stats(ctx context.Context, since time.Time) (*models.LoginStats, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	q := r.db.execQueryer(ctx)
	stats := &models.LoginStats{StartDate: since}

	rows, err := q.Query(ctx, qLoginLogDailyStats, since)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	daily, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DailyLoginStat, error) {
		var d models.DailyLoginStat
		err := row.Scan(&d.Date, &d.LoginCount, &d.UniqueUsers)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	stats.DailyStats = daily

	groups := []struct {
		spec groupSpec
		dst  *[]models.GroupStat
	}{
		{groupSpec{column: "device_type", uniqueUsers: true}, &stats.DeviceStats},
		{groupSpec{column: "login_method", uniqueUsers: true}, &stats.MethodStats},
		{groupSpec{column: "os", limit: topGroupLimit}, &stats.OSStats},
		{groupSpec{column: "browser", limit: topGroupLimit}, &stats.BrowserStats},
	}
	for _, g := range groups {
		out, err := r.groupStats(ctx, q, g.spec, since)
		if err != nil {
			return nil, err
		}
		*g.dst = out
	}

	return stats, nil
}

func (r *LoginLogRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qLoginLogDeleteBefore, cutoff)
	if err != nil {
		return 0, fmt.Errorf("login log cleanup: %w", err)
	}
	return tag.RowsAffected(), nil
}

// groupSpec describes one GROUP BY breakdown. column is always one of the
// fixed names above, never request input.
type groupSpec struct {
	column      string
	uniqueUsers bool
	limit       int
}

func (g groupSpec) sql() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(g.column)
	b.WriteString(", COUNT(*)")
	if g.uniqueUsers {
		b.WriteString(", COUNT(DISTINCT user_id)")
	}
	b.WriteString(" FROM user_login_logs WHERE login_at >= $1 GROUP BY ")
	b.WriteString(g.column)
	b.WriteString(" ORDER BY COUNT(*) DESC, ")
	b.WriteString(g.column)
	if g.limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(g.limit))
	}
	return b.String()
}

func (r *LoginLogRepo) groupStats(ctx context.Context, q execQueryer, g groupSpec, since time.Time) ([]models.GroupStat, error) {
	rows, err := q.Query(ctx, g.sql(), since)
	if err != nil {
		return nil, fmt.Errorf("%s stats: %w", g.column, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.GroupStat, error) {
		var s models.GroupStat
		if g.uniqueUsers {
			return s, row.Scan(&s.Key, &s.Count, &s.UniqueUsers)
		}
		return s, row.Scan(&s.Key, &s.Count)
	})
	if err != nil {
		return nil, fmt.Errorf("%s stats: %w", g.column, err)
	}
	return out, nil
}

func buildLogFilter(f models.LoginLogFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+" "+placeholder(len(args)))
	}

	if f.UserID > 0 {
		add("user_id =", f.UserID)
	}
	if f.DeviceType != "" {
		add("device_type =", f.DeviceType)
	}
	if !f.Since.IsZero() {
		add("login_at >=", f.Since)
	}
	if !f.Until.IsZero() {
		add("login_at <=", f.Until)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}


func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
