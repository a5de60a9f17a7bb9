package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/aromapulse/authgate/src/config"
	"github.com/aromapulse/authgate/src/metrics"
	"github.com/aromapulse/authgate/src/models"
)

var kakaoEndpoint = oauth2.Endpoint{
	AuthURL:  "https://kauth.kakao.com/oauth/authorize",
	TokenURL: "https://kauth.kakao.com/oauth/token",
}

const kakaoUserInfoURL = "https://kapi.kakao.com/v2/user/me"

type Kakao struct {
	client
}

func NewKakao(cfg config.ProviderConfig, httpClient *http.Client, rec metrics.Recorder) *Kakao {
	return &Kakao{
		client: newClient(models.ProviderKakao, cfg, kakaoEndpoint, kakaoUserInfoURL, nil, httpClient, rec),
	}
}

type kakaoUserResponse struct {
	ID           int64 `json:"id"`
	KakaoAccount struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
	Properties struct {
		Nickname     string `json:"nickname"`
		ProfileImage string `json:"profile_image"`
	} `json:"properties"`
}

func (k *Kakao) FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error) {
	var body kakaoUserResponse
	if err := k.getProfile(ctx, accessToken, &body); err != nil {
		return nil, err
	}
	if body.ID == 0 {
		return nil, fmt.Errorf("%w: kakao: missing id", ErrProfileFetchFailed)
	}

	name := body.KakaoAccount.Profile.Nickname
	if name == "" {
		name = body.Properties.Nickname
	}
	avatar := body.KakaoAccount.Profile.ProfileImageURL
	if avatar == "" {
		avatar = body.Properties.ProfileImage
	}

	return &models.Profile{
		ID:        strconv.FormatInt(body.ID, 10),
		Email:     body.KakaoAccount.Email,
		Name:      name,
		AvatarURL: avatar,
	}, nil
}
