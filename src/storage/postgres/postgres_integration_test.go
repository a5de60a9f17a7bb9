//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aromapulse/authgate/src/config"
	"github.com/aromapulse/authgate/src/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("IT_DB_DSN")
	if dsn == "" {
		t.Skip("IT_DB_DSN not set")
	}

	require.NoError(t, Migrate(dsn))

	db, err := New(context.Background(), config.PostgresConfig{DSN: dsn, QueryTimeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.Pool.Exec(context.Background(), `TRUNCATE user_login_logs, oauth_accounts, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

func TestAccountRepo_CreateOrLink(t *testing.T) {
	db := openTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	u1, err := repo.FindOrCreateByProviderIdentity(ctx, models.ProviderNaver, "n-1",
		&models.Profile{ID: "n-1", Email: "Hong@Example.com", Name: "홍길동"})
	require.NoError(t, err)
	assert.Equal(t, "hong@example.com", u1.Email)
	assert.Equal(t, "user", u1.Role)
	assert.True(t, u1.IsOAuth)

	again, err := repo.FindOrCreateByProviderIdentity(ctx, models.ProviderNaver, "n-1",
		&models.Profile{ID: "n-1", Email: "hong@example.com", Name: "홍길동"})
	require.NoError(t, err)
	assert.Equal(t, u1.ID, again.ID)

	linked, err := repo.FindOrCreateByProviderIdentity(ctx, models.ProviderKakao, "k-1",
		&models.Profile{ID: "k-1", Email: "hong@example.com", AvatarURL: "https://img/k.png"})
	require.NoError(t, err)
	assert.Equal(t, u1.ID, linked.ID)
	assert.Equal(t, "https://img/k.png", linked.ProfileImage)
}

func TestAccountRepo_Password(t *testing.T) {
	db := openTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	u, err := repo.CreateWithPassword(ctx, "lee@example.com", "이영희", "hash")
	require.NoError(t, err)

	_, err = repo.CreateWithPassword(ctx, "LEE@example.com", "dup", "hash")
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	found, err := repo.FindByEmail(ctx, "lee@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)

	_, err = repo.FindByID(ctx, 999_999)
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	require.NoError(t, repo.SetRole(ctx, u.ID, "admin"))
	found, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", found.Role)
	assert.ErrorIs(t, repo.SetRole(ctx, 999_999, "admin"), models.ErrUserNotFound)
}

func TestLoginLogRepo_WriteListStatsCleanup(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoginLogRepo(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Write(ctx, &models.LoginEvent{
			UserID:      int64(i%2 + 1),
			Email:       fmt.Sprintf("u%d@example.com", i),
			DeviceType:  "mobile",
			OS:          "iOS 17.1",
			Browser:     "Safari",
			LoginMethod: "naver",
			LoginStatus: "success",
			LoginAt:     now.Add(-time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repo.Write(ctx, &models.LoginEvent{
		UserID: 3, DeviceType: "desktop", LoginMethod: "email", LoginStatus: "success",
		LoginAt: now.Add(-100 * 24 * time.Hour),
	}))

	logs, total, err := repo.List(ctx, models.LoginLogFilter{DeviceType: "mobile", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, logs, 2)
	assert.True(t, !logs[0].LoginAt.Before(logs[1].LoginAt))

	stats, err := repo.Stats(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stats.MethodStats, 1)
	assert.Equal(t, "naver", stats.MethodStats[0].Key)
	assert.Equal(t, int64(3), stats.MethodStats[0].Count)
	assert.Equal(t, int64(2), stats.MethodStats[0].UniqueUsers)

	deleted, err := repo.DeleteBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
