package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/aromapulse/authgate/src/models"
)

var (
	_ models.AccountStore = (*AccountRepo)(nil)
	_ models.RoleStore    = (*AccountRepo)(nil)
)

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const userColumns = `u.id, u.email, u.name, u.profile_image, COALESCE(u.password_hash, ''), u.role, u.is_oauth, u.created_at, u.updated_at`

var (
	qUserByID = `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1;`

	qUserByEmail = `SELECT ` + userColumns + ` FROM users u WHERE u.email = $1;`

	qUserByIdentity = `
SELECT ` + userColumns + `
FROM oauth_accounts oa
JOIN users u ON u.id = oa.user_id
WHERE oa.provider = $1 AND oa.provider_user_id = $2;`

	qUserInsertPassword = `
INSERT INTO users AS u (email, name, password_hash, is_oauth)
VALUES ($1, $2, $3, FALSE)
RETURNING ` + userColumns + `;`

	// The no-op update makes RETURNING yield the existing row when a
	// concurrent login already created the account.
	qUserUpsertOAuth = `
INSERT INTO users AS u (email, name, profile_image, is_oauth)
VALUES ($1, $2, $3, TRUE)
ON CONFLICT (email) DO UPDATE SET updated_at = u.updated_at
RETURNING ` + userColumns + `;`

	qUserFillImage = `
UPDATE users
SET profile_image = $2, updated_at = NOW()
WHERE id = $1 AND profile_image = '';`

	qUserSetRole = `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1;`

	qIdentityInsert = `
INSERT INTO oauth_accounts (user_id, provider, provider_user_id, email, name, profile_image)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (provider, provider_user_id) DO NOTHING;`

	qIdentityRefresh = `
UPDATE oauth_accounts
SET email = $3, name = $4, profile_image = $5
WHERE provider = $1 AND provider_user_id = $2;`
)

func (r *AccountRepo) FindOrCreateByProviderIdentity(ctx context.Context, provider models.Provider, providerUserID string, profile *models.Profile) (*models.User, error) {
	if providerUserID == "" {
		return nil, fmt.Errorf("provider user id is required")
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var out *models.User
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.execQueryer(ctx)

		u, err := scanUser(q.QueryRow(ctx, qUserByIdentity, string(provider), providerUserID))
		if err == nil {
			if _, err := q.Exec(ctx, qIdentityRefresh, string(provider), providerUserID,
				profile.Email, profile.Name, profile.AvatarURL); err != nil {
				return fmt.Errorf("identity refresh: %w", err)
			}
			out = u
			return nil
		}
		if !errors.Is(err, models.ErrUserNotFound) {
			return err
		}

		email := normalizeEmail(profile.Email)
		u, err = scanUser(q.QueryRow(ctx, qUserByEmail, email))
		switch {
		case err == nil:
			if profile.AvatarURL != "" && u.ProfileImage == "" {
				if _, err := q.Exec(ctx, qUserFillImage, u.ID, profile.AvatarURL); err != nil {
					return fmt.Errorf("user image update: %w", err)
				}
				u.ProfileImage = profile.AvatarURL
			}
		case errors.Is(err, models.ErrUserNotFound):
			u, err = scanUser(q.QueryRow(ctx, qUserUpsertOAuth, email, profile.Name, profile.AvatarURL))
			if err != nil {
				return fmt.Errorf("user insert: %w", err)
			}
		default:
			return err
		}

		if _, err := q.Exec(ctx, qIdentityInsert, u.ID, string(provider), providerUserID,
			profile.Email, profile.Name, profile.AvatarURL); err != nil {
			return fmt.Errorf("identity insert: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AccountRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	return scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserByID, id))
}

func (r *AccountRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	return scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserByEmail, normalizeEmail(email)))
}

func (r *AccountRepo) CreateWithPassword(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserInsertPassword, normalizeEmail(email), name, passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrEmailTaken
		}
		return nil, fmt.Errorf("user insert: %w", err)
	}
	return u, nil
}

func (r *AccountRepo) SetRole(ctx context.Context, id int64, role string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qUserSetRole, id, role)
	if err != nil {
		return fmt.Errorf("user set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.ProfileImage, &u.PasswordHash,
		&u.Role, &u.IsOAuth, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
