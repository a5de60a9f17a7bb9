package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/aromapulse/authgate/src/config"
	"github.com/aromapulse/authgate/src/metrics"
	"github.com/aromapulse/authgate/src/models"
)

var (
	ErrTokenExchangeFailed = errors.New("oauth token exchange failed")
	ErrProfileFetchFailed  = errors.New("oauth profile fetch failed")
)

// Provider is one OAuth2 identity provider.
type Provider interface {
	Name() models.Provider
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, code, state string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error)
}

type client struct {
	name        models.Provider
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	metrics     metrics.Recorder

	// sendStateOnExchange adds the state parameter to the token request.
	sendStateOnExchange bool
}

func newClient(name models.Provider, cfg config.ProviderConfig, endpoint oauth2.Endpoint, userInfoURL string, scopes []string, httpClient *http.Client, rec metrics.Recorder) client {
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.UserInfoURL != "" {
		userInfoURL = cfg.UserInfoURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}

	return client{
		name: name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
		metrics:     rec,
	}
}

func (c *client) Name() models.Provider {
	return c.name
}

func (c *client) AuthorizationURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

func (c *client) Exchange(ctx context.Context, code, state string) (*oauth2.Token, error) {
	start := time.Now()
	defer func() { c.metrics.OAuthUpstream(string(c.name), "token", time.Since(start)) }()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	var opts []oauth2.AuthCodeOption
	if c.sendStateOnExchange {
		opts = append(opts, oauth2.SetAuthURLParam("state", state))
	}

	tok, err := c.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			reason := re.ErrorCode
			if reason == "" && re.Response != nil {
				reason = fmt.Sprintf("status %d", re.Response.StatusCode)
			}
			return nil, fmt.Errorf("%w: %s: %s", ErrTokenExchangeFailed, c.name, reason)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrTokenExchangeFailed, c.name, err)
	}
	return tok, nil
}

// getProfile performs the authenticated profile request and decodes the body into dst.
func (c *client) getProfile(ctx context.Context, accessToken string, dst any) error {
	start := time.Now()
	defer func() { c.metrics.OAuthUpstream(string(c.name), "profile", time.Since(start)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProfileFetchFailed, c.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProfileFetchFailed, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s: status %d", ErrProfileFetchFailed, c.name, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrProfileFetchFailed, c.name, err)
	}
	return nil
}

// NewProviders builds a client for every provider with credentials configured.
func NewProviders(cfg config.OAuthConfig, rec metrics.Recorder) map[models.Provider]Provider {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	providers := make(map[models.Provider]Provider)
	if cfg.Google.Enabled() {
		providers[models.ProviderGoogle] = NewGoogle(cfg.Google, httpClient, rec)
	}
	if cfg.Naver.Enabled() {
		providers[models.ProviderNaver] = NewNaver(cfg.Naver, httpClient, rec)
	}
	if cfg.Kakao.Enabled() {
		providers[models.ProviderKakao] = NewKakao(cfg.Kakao, httpClient, rec)
	}
	return providers
}
