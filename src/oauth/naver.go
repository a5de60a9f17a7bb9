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

var naverEndpoint = oauth2.Endpoint{
	AuthURL:  "https://nid.naver.com/oauth2.0/authorize",
	TokenURL: "https://nid.naver.com/oauth2.0/token",
}

const naverUserInfoURL = "https://openapi.naver.com/v1/nid/me"

type Naver struct {
	client
}

func NewNaver(cfg config.ProviderConfig, httpClient *http.Client, rec metrics.Recorder) *Naver {
	c := newClient(models.ProviderNaver, cfg, naverEndpoint, naverUserInfoURL, nil, httpClient, rec)
	c.sendStateOnExchange = true
	return &Naver{client: c}
}

type naverProfileResponse struct {
	ResultCode string `json:"resultcode"`
	Message    string `json:"message"`
	Response   struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		Name         string `json:"name"`
		Nickname     string `json:"nickname"`
		ProfileImage string `json:"profile_image"`
	} `json:"response"`
}

func (n *Naver) FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error) {
	var body naverProfileResponse
	if err := n.getProfile(ctx, accessToken, &body); err != nil {
		return nil, err
	}
	if body.ResultCode != "00" {
		return nil, fmt.Errorf("%w: naver: resultcode %q: %s", ErrProfileFetchFailed, body.ResultCode, body.Message)
	}
	if body.Response.ID == "" {
		return nil, fmt.Errorf("%w: naver: missing id", ErrProfileFetchFailed)
	}

	name := body.Response.Name
	if name == "" {
		name = body.Response.Nickname
	}

	return &models.Profile{
		ID:        body.Response.ID,
		Email:     body.Response.Email,
		Name:      name,
		AvatarURL: body.Response.ProfileImage,
	}, nil
}
