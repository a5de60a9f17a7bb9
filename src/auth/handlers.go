package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aromapulse/authgate/src/config"
	"github.com/aromapulse/authgate/src/middleware"
	"github.com/aromapulse/authgate/src/models"
)

const stateCookieName = "oauth_state"

type Handler struct {
	service *Service
	cfg     config.AuthConfig
	app     config.AppConfig
	logger  *zap.Logger
}

func NewHandler(service *Service, cfg config.AuthConfig, app config.AppConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		cfg:     cfg,
		app:     app,
		logger:  logger.With(zap.String("component", "auth.handler")),
	}
}

type passwordLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

// RegisterRoutes mounts the auth endpoints on g. limit guards the login
// entry points and may be nil.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup, authMW *middleware.AuthMiddleware, limit gin.HandlerFunc) {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	g.GET("/providers", h.Providers)
	g.POST("/login", limit, h.PasswordLogin)
	g.POST("/register", limit, h.Register)
	// GET is kept for plain logout links.
	g.POST("/logout", h.Logout)
	g.GET("/logout", h.Logout)
	g.GET("/me", authMW.OptionalAuth(), h.Me)
	g.GET("/:provider", limit, h.Login)
	g.GET("/:provider/callback", h.Callback)
}

// Login redirects the browser to the provider's consent page.
func (h *Handler) Login(c *gin.Context) {
	authURL, state, err := h.service.Begin(c.Request.Context(), c.Param("provider"), c.Query("returnTo"))
	if err != nil {
		if errors.Is(err, ErrUnknownProvider) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown login provider"})
			return
		}
		h.logger.Error("begin oauth login", zap.String("provider", c.Param("provider")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start login"})
		return
	}

	h.setCookie(c, stateCookieName, state, int(h.service.states.TTL().Seconds()), "/api/auth")
	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the provider redirect and sets the session cookie.
func (h *Handler) Callback(c *gin.Context) {
	provider := c.Param("provider")
	cookieState, _ := c.Cookie(stateCookieName)
	h.setCookie(c, stateCookieName, "", -1, "/api/auth")

	if providerErr := c.Query("error"); providerErr != "" {
		h.logger.Warn("provider returned error", zap.String("provider", provider), zap.String("error", providerErr))
		h.redirectFailure(c, "login_failed")
		return
	}

	state := c.Query("state")
	if state == "" || cookieState == "" || subtle.ConstantTimeCompare([]byte(state), []byte(cookieState)) != 1 {
		h.logger.Warn("oauth state does not match browser", zap.String("provider", provider))
		h.redirectFailure(c, "csrf_suspected")
		return
	}

	result, err := h.service.Complete(c.Request.Context(), provider, c.Query("code"), state, c.Request)
	if err != nil {
		if errors.Is(err, ErrStateMismatch) {
			h.logger.Warn("oauth state rejected", zap.String("provider", provider))
			h.redirectFailure(c, "csrf_suspected")
			return
		}
		h.logger.Error("oauth login failed", zap.String("provider", provider), zap.Error(err))
		h.redirectFailure(c, "login_failed")
		return
	}

	h.setAuthCookie(c, result.Token)
	c.Redirect(http.StatusFound, result.ReturnTo)
}

// PasswordLogin handles email/password sign-in.
func (h *Handler) PasswordLogin(c *gin.Context) {
	var req passwordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	result, err := h.service.PasswordLogin(c.Request.Context(), req.Email, req.Password, c.Request)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		h.logger.Error("password login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	h.setAuthCookie(c, result.Token)
	c.JSON(http.StatusOK, gin.H{
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"user":       result.User,
	})
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRegistration):
			c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), ErrInvalidRegistration.Error()+": ")})
		case errors.Is(err, models.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		default:
			h.logger.Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Logout clears the session cookie. Tokens are stateless, so a copy taken
// before logout stays valid until it expires.
func (h *Handler) Logout(c *gin.Context) {
	h.setCookie(c, h.cfg.CookieName, "", -1, "/")
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me reports the caller's identity. It runs behind OptionalAuth.
func (h *Handler) Me(c *gin.Context) {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": ident})
}

// Providers lists the enabled login providers.
func (h *Handler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.service.Providers()})
}

func (h *Handler) redirectFailure(c *gin.Context, reason string) {
	target := h.app.LoginPath
	if target == "" {
		target = "/login"
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	c.Redirect(http.StatusFound, target+sep+"error="+url.QueryEscape(reason))
}

func (h *Handler) setAuthCookie(c *gin.Context, value string) {
	h.setCookie(c, h.cfg.CookieName, value, int(h.cfg.TokenTTL.Seconds()), "/")
}

func (h *Handler) setCookie(c *gin.Context, name, value string, maxAge int, path string) {
	sameSite := http.SameSiteLaxMode
	if h.cfg.CookieSameSite == "strict" {
		sameSite = http.SameSiteStrictMode
	} else if h.cfg.CookieSameSite == "none" {
		sameSite = http.SameSiteNoneMode
	}

	// The OAuth state cookie must survive the cross-site redirect back from the provider.
	if name == stateCookieName && sameSite == http.SameSiteStrictMode {
		sameSite = http.SameSiteLaxMode
	}

	c.SetSameSite(sameSite)

	cookieDomain := h.cfg.CookieDomain
	if cookieDomain == "localhost" {
		cookieDomain = ""
	}

	c.SetCookie(name, value, maxAge, path, cookieDomain, h.cfg.CookieSecure, true)
}
