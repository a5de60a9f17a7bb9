package auth

import (
	"time"

	"github.com/aromapulse/authgate/src/models"
)

// OAuthState is the pending login saved between the redirect and the callback.
type OAuthState struct {
	State     string          `json:"state"`
	Provider  models.Provider `json:"provider"`
	ReturnTo  string          `json:"return_to"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// LoginResult is what a successful login hands back to the HTTP layer.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
	ReturnTo  string       `json:"-"`
}

type accountRecord struct {
	models.User
	PasswordHash string `json:"password_hash,omitempty"`
}
