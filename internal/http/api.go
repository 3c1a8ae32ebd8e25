package http

import (
	"errors"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"marketplace/internal/auth"
	"marketplace/internal/domain"
	"marketplace/internal/readiness"
	"marketplace/internal/service"
)

// Options configures the UI controller.
type Options struct {
	Tokens        *auth.BrowserTokens
	Logger        *logrus.Logger
	SecureCookies bool
	NoticeTTL     time.Duration
	// LoginRedirectDelay and LogoutRedirectDelay let the notification render
	// before navigating away.
	LoginRedirectDelay  time.Duration
	LogoutRedirectDelay time.Duration
}

// Handler wires HTTP routes to the session store. It becomes operational once
// the store's readiness future resolves; until then requests get 503.
type Handler struct {
	opts   Options
	logger *logrus.Entry
	ready  *readiness.Future[*service.Store]
	pages  *template.Template

	store    atomic.Pointer[service.Store]
	initOnce sync.Once
}

func NewHandler(ready *readiness.Future[*service.Store], opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.NoticeTTL == 0 {
		opts.NoticeTTL = time.Minute
	}
	if opts.LoginRedirectDelay == 0 {
		opts.LoginRedirectDelay = 700 * time.Millisecond
	}
	if opts.LogoutRedirectDelay == 0 {
		opts.LogoutRedirectDelay = 400 * time.Millisecond
	}

	h := &Handler{
		opts:   opts,
		logger: opts.Logger.WithField("component", "ui_controller"),
		ready:  ready,
		pages:  mustParsePages(),
	}
	ready.Then(h.init)
	return h
}

// init runs at most once, whichever of the readiness callback and route
// registration observes the store first.
func (h *Handler) init(store *service.Store) {
	h.initOnce.Do(func() {
		h.store.Store(store)
		h.logger.Info("ui controller initialized")
	})
}

// Ready reports whether the controller is serving requests.
func (h *Handler) Ready() bool {
	return h.store.Load() != nil
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	if store, ok := h.ready.Get(); ok {
		h.init(store)
	}

	router.SetHTMLTemplate(h.pages)
	router.Use(corsMiddleware())
	router.Use(h.browserIdentity())

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": "ok", "ready": h.Ready()})
		})

		ready := api.Group("", h.requireReady(true))
		ready.POST("/register", h.apiRegister)
		ready.POST("/login", h.apiLogin)
		ready.POST("/logout", h.apiLogout)
		ready.GET("/me", h.apiMe)
		ready.GET("/providers", h.apiProviders)
	}

	site := router.Group("/", h.requireReady(false))
	{
		site.GET("/", h.index)
		site.GET(indexPage, h.index)
		site.GET(consumerDashboardPage, h.dashboard(domain.UserTypeConsumer))
		site.GET(providerDashboardPage, h.dashboard(domain.UserTypeProvider))
		for _, cat := range categories {
			site.GET(cat.Page, h.categoryPage(cat))
		}
		site.GET(searchPage, h.searchResults)

		site.GET("/category/:name", h.navigateToCategory)
		site.GET("/search", h.performSearch)
		site.POST("/register/:type", h.registerForm)
		site.POST("/login", h.loginForm)
		site.POST("/logout", h.logoutForm)
		site.POST("/forgot-password", h.forgotPassword)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) requireReady(api bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Ready() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		if api {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store is not ready"})
			return
		}
		c.HTML(http.StatusServiceUnavailable, "unavailable", nil)
		c.Abort()
	}
}

type registerRequest struct {
	Type        string `json:"type" binding:"required"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account; the password never leaves the store.
type UserResponse struct {
	ID               string          `json:"id"`
	Type             domain.UserType `json:"type"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Phone            string          `json:"phone"`
	RegistrationDate string          `json:"registrationDate"`
	Category         string          `json:"category,omitempty"`
	Description      string          `json:"description,omitempty"`
}

func userToResponse(u *domain.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:               u.ID,
		Type:             u.Type,
		Name:             u.Name,
		Email:            u.Email,
		Phone:            u.Phone,
		RegistrationDate: u.RegistrationDate.Format(time.RFC3339),
		Category:         u.Category,
		Description:      u.Description,
	}
}

func (h *Handler) apiRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.store.Load().Register(c.Request.Context(), service.RegisterInput{
		Type:        domain.UserType(strings.ToLower(strings.TrimSpace(req.Type))),
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Password:    req.Password,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		c.JSON(registerStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, userToResponse(user))
}

func (h *Handler) apiLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.session(c).Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":     userToResponse(user),
		"redirect": dashboardFor(user.IsProvider()),
	})
}

func (h *Handler) apiLogout(c *gin.Context) {
	h.session(c).Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"ok": true, "redirect": indexPage})
}

func (h *Handler) apiMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": userToResponse(h.session(c).CurrentUser())})
}

func (h *Handler) apiProviders(c *gin.Context) {
	providers := h.store.Load().Providers(c.Query("category"), c.Query("q"))
	resp := make([]*UserResponse, len(providers))
	for i := range providers {
		resp[i] = userToResponse(&providers[i])
	}
	c.JSON(http.StatusOK, resp)
}

func registerStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmailMissing),
		errors.Is(err, service.ErrPasswordMissing),
		errors.Is(err, service.ErrInvalidUserType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
