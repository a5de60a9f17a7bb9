package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aromapulse/authgate/src/models"
)

// PromoteAdmins gives role to every listed account that exists. Unknown
// emails are skipped so the list can name people who have not signed up yet.
func PromoteAdmins(ctx context.Context, store models.RoleStore, emails []string, role string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	promoted := 0
	for _, email := range emails {
		user, err := store.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, models.ErrUserNotFound) {
				logger.Warn("admin bootstrap: no account", zap.String("email", email))
				continue
			}
			return promoted, fmt.Errorf("find %s: %w", email, err)
		}
		if user.Role == role {
			continue
		}

		if err := store.SetRole(ctx, user.ID, role); err != nil {
			return promoted, fmt.Errorf("promote %s: %w", email, err)
		}
		logger.Info("admin bootstrap: role granted", zap.Int64("user_id", user.ID), zap.String("role", role))
		promoted++
	}
	return promoted, nil
}
