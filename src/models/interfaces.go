package models

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// AccountStore defines the account operations the login flow depends on
type AccountStore interface {
	// FindOrCreateByProviderIdentity returns the user linked to the provider identity,
	// linking or creating one when none exists yet.
	FindOrCreateByProviderIdentity(ctx context.Context, provider Provider, providerUserID string, profile *Profile) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateWithPassword(ctx context.Context, email, name, passwordHash string) (*User, error)
}

// RoleStore changes account roles. Used to seed administrators at startup.
type RoleStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	SetRole(ctx context.Context, id int64, role string) error
}

// AuditSink persists login events
type AuditSink interface {
	Write(ctx context.Context, event *LoginEvent) error
}

// LoginLogStore serves the admin login-log queries
type LoginLogStore interface {
	List(ctx context.Context, filter LoginLogFilter) ([]LoginLog, int64, error)
	Stats(ctx context.Context, since time.Time) (*LoginStats, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
