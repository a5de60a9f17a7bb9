package oauth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/aromapulse/authgate/src/config"
	"github.com/aromapulse/authgate/src/metrics"
	"github.com/aromapulse/authgate/src/models"
)

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type Google struct {
	client
}

func NewGoogle(cfg config.ProviderConfig, httpClient *http.Client, rec metrics.Recorder) *Google {
	return &Google{
		client: newClient(models.ProviderGoogle, cfg, googleEndpoint, googleUserInfoURL,
			[]string{"openid", "email", "profile"}, httpClient, rec),
	}
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *Google) FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error) {
	var info googleUserInfo
	if err := g.getProfile(ctx, accessToken, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, fmt.Errorf("%w: google: missing id", ErrProfileFetchFailed)
	}

	return &models.Profile{
		ID:        info.ID,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}
