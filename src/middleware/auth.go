package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aromapulse/authgate/src/metrics"
	"github.com/aromapulse/authgate/src/models"
	"github.com/aromapulse/authgate/src/token"
)

const identityKey = "identity"

type identityCtxKey struct{}

// TokenParser verifies a session token.
type TokenParser interface {
	Parse(tok string) (*token.Claims, error)
}

// RoleLookup loads the current account for role checks.
type RoleLookup interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type AuthMiddleware struct {
	tokens     TokenParser
	cookieName string
	metrics    metrics.Recorder
	logger     *zap.Logger
}

func NewAuthMiddleware(tokens TokenParser, cookieName string, rec metrics.Recorder, logger *zap.Logger) *AuthMiddleware {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		tokens:     tokens,
		cookieName: cookieName,
		metrics:    rec,
		logger:     logger.With(zap.String("component", "auth.middleware")),
	}
}

var errNoToken = errors.New("no session token")

// RequireAuth rejects requests without a valid session token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.authenticate(c)
		if err != nil {
			switch {
			case errors.Is(err, errNoToken):
				m.metrics.TokenVerification("missing")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required", "reason": "no_token"})
			case errors.Is(err, token.ErrExpired):
				m.logger.Debug("token rejected", zap.Error(err), zap.String("path", c.FullPath()))
				m.metrics.TokenVerification("expired")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired", "reason": "expired_token"})
			default:
				m.logger.Debug("token rejected", zap.Error(err), zap.String("path", c.FullPath()))
				m.metrics.TokenVerification("invalid")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session", "reason": "invalid_token"})
			}
			return
		}

		m.metrics.TokenVerification("valid")
		setIdentity(c, claims.Identity())
		c.Next()
	}
}

// OptionalAuth injects the identity when a valid token is present and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.authenticate(c)
		switch {
		case err == nil:
			m.metrics.TokenVerification("valid")
			setIdentity(c, claims.Identity())
		case errors.Is(err, token.ErrExpired):
			m.metrics.TokenVerification("expired")
		case !errors.Is(err, errNoToken):
			m.metrics.TokenVerification("invalid")
		}
		c.Next()
	}
}

// RequireRole must run after RequireAuth. The role is read from the account
// store, not from the token, so demotions apply immediately.
func (m *AuthMiddleware) RequireRole(lookup RoleLookup, roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		ident, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required", "reason": "no_token"})
			return
		}

		user, err := lookup.FindByID(c.Request.Context(), ident.UserID)
		if err != nil {
			if errors.Is(err, models.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
			m.logger.Error("role lookup failed", zap.Int64("user_id", ident.UserID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to check permissions"})
			return
		}

		if _, ok := allowed[user.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}

// authenticate accepts a token from either transport: the session cookie is
// tried first, then the Authorization bearer header, so a stale cookie does not
// shadow a valid header token. When every candidate fails the last error wins.
func (m *AuthMiddleware) authenticate(c *gin.Context) (*token.Claims, error) {
	err := errNoToken
	for _, raw := range m.tokenCandidates(c) {
		claims, perr := m.tokens.Parse(raw)
		if perr == nil {
			return claims, nil
		}
		err = perr
	}
	return nil, err
}

func (m *AuthMiddleware) tokenCandidates(c *gin.Context) []string {
	var out []string
	if v, err := c.Cookie(m.cookieName); err == nil && v != "" {
		out = append(out, v)
	}

	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		if v := strings.TrimSpace(authHeader[7:]); v != "" && (len(out) == 0 || out[0] != v) {
			out = append(out, v)
		}
	}
	return out
}

func setIdentity(c *gin.Context, ident token.Identity) {
	c.Set(identityKey, ident)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), identityCtxKey{}, ident))
}

// CurrentIdentity returns the identity injected by RequireAuth or OptionalAuth.
func CurrentIdentity(c *gin.Context) (token.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return token.Identity{}, false
	}
	ident, ok := v.(token.Identity)
	return ident, ok
}

// IdentityFromContext is CurrentIdentity for code that only sees a context.Context.
func IdentityFromContext(ctx context.Context) (token.Identity, bool) {
	ident, ok := ctx.Value(identityCtxKey{}).(token.Identity)
	return ident, ok
}
