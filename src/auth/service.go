package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aromapulse/authgate/src/config"
	"github.com/aromapulse/authgate/src/metrics"
	"github.com/aromapulse/authgate/src/models"
	"github.com/aromapulse/authgate/src/oauth"
	"github.com/aromapulse/authgate/src/token"
)

var (
	ErrUnknownProvider     = errors.New("unknown oauth provider")
	ErrStateMismatch       = errors.New("oauth state mismatch")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRegistration = errors.New("invalid registration")
)

const (
	minPasswordLength = 8
	fallbackEmailHost = "aromapulse.kr"
)

var fallbackNames = map[models.Provider]string{
	models.ProviderNaver:  "네이버 사용자",
	models.ProviderGoogle: "구글 사용자",
	models.ProviderKakao:  "카카오 사용자",
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(claims token.Claims, ttl time.Duration) (string, error)
}

// LoginRecorder receives successful logins for the audit trail.
type LoginRecorder interface {
	Record(userID int64, email, method string, r *http.Request)
}

// Service runs the login flows: OAuth redirect and callback, password login
// and registration.
type Service struct {
	providers map[models.Provider]oauth.Provider
	states    *StateStore
	accounts  models.AccountStore
	tokens    TokenIssuer
	audit     LoginRecorder
	metrics   metrics.Recorder
	logger    *zap.Logger
	cfg       config.AuthConfig

	now        func() time.Time
	bcryptCost int
	dummyHash  []byte
}

func NewService(
	cfg config.AuthConfig,
	providers map[models.Provider]oauth.Provider,
	states *StateStore,
	accounts models.AccountStore,
	tokens TokenIssuer,
	audit LoginRecorder,
	rec metrics.Recorder,
	logger *zap.Logger,
) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		providers:  providers,
		states:     states,
		accounts:   accounts,
		tokens:     tokens,
		audit:      audit,
		metrics:    rec,
		logger:     logger.With(zap.String("component", "auth.service")),
		cfg:        cfg,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equaliser"), bcrypt.MinCost)
	return s
}

// Providers lists the configured providers in stable order.
func (s *Service) Providers() []models.Provider {
	out := make([]models.Provider, 0, len(s.providers))
	for p := range s.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Begin creates a single-use state for provider and returns the provider's
// authorization URL together with the state.
func (s *Service) Begin(ctx context.Context, provider, returnTo string) (string, string, error) {
	p, ok := s.providers[models.Provider(provider)]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	state, err := GenerateState()
	if err != nil {
		return "", "", err
	}

	if err := s.states.Save(ctx, state, p.Name(), SanitizeReturnTo(returnTo, s.cfg.DefaultReturnPath)); err != nil {
		return "", "", err
	}

	return p.AuthorizationURL(state), state, nil
}

// Complete finishes an OAuth login. The state is consumed before any call to
// the provider, so a replayed or forged callback never reaches the token endpoint.
func (s *Service) Complete(ctx context.Context, provider, code, state string, r *http.Request) (*LoginResult, error) {
	p, ok := s.providers[models.Provider(provider)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	name := string(p.Name())

	pending, err := s.states.Consume(ctx, state)
	if err != nil {
		s.metrics.OAuthLogin(name, "error")
		return nil, err
	}
	if pending == nil || pending.Provider != p.Name() {
		s.metrics.OAuthLogin(name, "state_mismatch")
		return nil, ErrStateMismatch
	}

	if code == "" {
		s.metrics.OAuthLogin(name, "exchange_failed")
		return nil, fmt.Errorf("%w: %s: missing code", oauth.ErrTokenExchangeFailed, name)
	}

	tok, err := p.Exchange(ctx, code, state)
	if err != nil {
		s.metrics.OAuthLogin(name, "exchange_failed")
		return nil, err
	}

	profile, err := p.FetchProfile(ctx, tok.AccessToken)
	if err != nil {
		s.metrics.OAuthLogin(name, "profile_failed")
		return nil, err
	}
	fillProfileDefaults(p.Name(), profile)

	user, err := s.accounts.FindOrCreateByProviderIdentity(ctx, p.Name(), profile.ID, profile)
	if err != nil {
		s.metrics.OAuthLogin(name, "error")
		return nil, fmt.Errorf("find or create account: %w", err)
	}

	result, err := s.issue(user, token.Claims{Provider: p.Name()})
	if err != nil {
		s.metrics.OAuthLogin(name, "error")
		return nil, err
	}
	result.ReturnTo = pending.ReturnTo

	s.audit.Record(user.ID, user.Email, name, r)
	s.metrics.OAuthLogin(name, "success")
	s.logger.Info("oauth login", zap.String("provider", name), zap.Int64("user_id", user.ID))

	return result, nil
}

// PasswordLogin authenticates an email/password account.
func (s *Service) PasswordLogin(ctx context.Context, email, password string, r *http.Request) (*LoginResult, error) {
	user, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	result, err := s.issue(user, token.Claims{Role: user.Role})
	if err != nil {
		return nil, err
	}

	s.audit.Record(user.ID, user.Email, models.LoginMethodEmail, r)
	s.logger.Info("password login", zap.Int64("user_id", user.ID))

	return result, nil
}

// Register creates an email/password account.
func (s *Service) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidRegistration)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRegistration, minPasswordLength)
	}
	if name == "" {
		name = email[:at]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}

	user, err := s.accounts.CreateWithPassword(ctx, email, name, string(hash))
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) issue(user *models.User, extra token.Claims) (*LoginResult, error) {
	claims := token.Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Provider: extra.Provider,
		Role:     extra.Role,
	}

	issuedAt := s.now()
	tok, err := s.tokens.Issue(claims, s.cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{
		Token:     tok,
		ExpiresAt: issuedAt.Add(s.cfg.TokenTTL),
		User:      user,
	}, nil
}

func fillProfileDefaults(provider models.Provider, p *models.Profile) {
	if strings.TrimSpace(p.Email) == "" {
		p.Email = fmt.Sprintf("%s_%s@%s", provider, p.ID, fallbackEmailHost)
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = fallbackNames[provider]
	}
}

// SanitizeReturnTo keeps post-login redirects on this site: only absolute
// paths are accepted, and protocol-relative or backslash forms fall back to def.
func SanitizeReturnTo(raw, def string) string {
	if def == "" {
		def = "/"
	}
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n") {
		return def
	}
	return raw
}
