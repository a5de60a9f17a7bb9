package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aromapulse/authgate/src/cache"
	"github.com/aromapulse/authgate/src/models"
)

var (
	_ models.AccountStore = (*UserStore)(nil)
	_ models.RoleStore    = (*UserStore)(nil)
)

// UserStore keeps accounts in Redis. It backs deployments that run
// without Postgres.
type UserStore struct {
	cache  *cache.RedisCache
	client *redis.Client
	now    func() time.Time
}

func NewUserStore(c *cache.RedisCache) *UserStore {
	return &UserStore{
		cache:  c,
		client: c.GetClient(),
		now:    time.Now,
	}
}

const userSeqKey = "user_seq"

func userKey(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

func emailKey(email string) string {
	return "user_email:" + normalizeEmail(email)
}

func identityKey(provider models.Provider, providerUserID string) string {
	return fmt.Sprintf("oauth_identity:%s:%s", provider, providerUserID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *UserStore) FindOrCreateByProviderIdentity(ctx context.Context, provider models.Provider, providerUserID string, profile *models.Profile) (*models.User, error) {
	if providerUserID == "" {
		return nil, fmt.Errorf("provider user id is required")
	}

	idKey := identityKey(provider, providerUserID)
	linked, err := u.lookupID(ctx, idKey)
	if err != nil {
		return nil, err
	}
	if linked != 0 {
		return u.FindByID(ctx, linked)
	}

	existing, err := u.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if err := u.client.Set(ctx, idKey, existing.ID, 0).Err(); err != nil {
			return nil, fmt.Errorf("failed to link identity: %w", err)
		}
		if existing.ProfileImage == "" && profile.AvatarURL != "" {
			existing.ProfileImage = profile.AvatarURL
			existing.UpdatedAt = u.now()
			if err := u.saveRecord(ctx, &accountRecord{User: *existing, PasswordHash: existing.PasswordHash}); err != nil {
				return nil, err
			}
		}
		return existing, nil
	case !errors.Is(err, models.ErrUserNotFound):
		return nil, err
	}

	rec, err := u.create(ctx, profile.Email, profile.Name, "", profile.AvatarURL, true)
	if err != nil {
		return nil, err
	}
	if err := u.client.Set(ctx, idKey, rec.ID, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to link identity: %w", err)
	}
	return &rec.User, nil
}

func (u *UserStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	rec, err := u.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	user := rec.User
	user.PasswordHash = rec.PasswordHash
	return &user, nil
}

func (u *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	id, err := u.lookupID(ctx, emailKey(email))
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, models.ErrUserNotFound
	}
	return u.FindByID(ctx, id)
}

func (u *UserStore) CreateWithPassword(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	rec, err := u.create(ctx, email, name, passwordHash, "", false)
	if err != nil {
		return nil, err
	}
	user := rec.User
	user.PasswordHash = rec.PasswordHash
	return &user, nil
}

func (u *UserStore) create(ctx context.Context, email, name, passwordHash, avatar string, isOAuth bool) (*accountRecord, error) {
	id, err := u.client.Incr(ctx, userSeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate user id: %w", err)
	}

	claimed, err := u.client.SetNX(ctx, emailKey(email), id, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve email: %w", err)
	}
	if !claimed {
		return nil, models.ErrEmailTaken
	}

	now := u.now()
	rec := &accountRecord{
		User: models.User{
			ID:           id,
			Email:        normalizeEmail(email),
			Name:         name,
			ProfileImage: avatar,
			Role:         "user",
			IsOAuth:      isOAuth,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		PasswordHash: passwordHash,
	}

	if err := u.saveRecord(ctx, rec); err != nil {
		u.client.Del(ctx, emailKey(email))
		return nil, err
	}
	return rec, nil
}

// SetRole changes the role of an existing account.
func (u *UserStore) SetRole(ctx context.Context, id int64, role string) error {
	rec, err := u.loadRecord(ctx, id)
	if err != nil {
		return err
	}
	rec.Role = role
	rec.UpdatedAt = u.now()
	return u.saveRecord(ctx, rec)
}

func (u *UserStore) saveRecord(ctx context.Context, rec *accountRecord) error {
	if err := u.cache.SetJSON(ctx, userKey(rec.ID), rec, 0); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (u *UserStore) loadRecord(ctx context.Context, id int64) (*accountRecord, error) {
	var rec accountRecord
	found, err := u.cache.GetJSON(ctx, userKey(id), &rec)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !found {
		return nil, models.ErrUserNotFound
	}
	return &rec, nil
}

func (u *UserStore) lookupID(ctx context.Context, key string) (int64, error) {
	id, err := u.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return id, nil
}
