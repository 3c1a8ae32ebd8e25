package http

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace/internal/domain"
	"marketplace/internal/service"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

func mustParsePages() *template.Template {
	return template.Must(template.New("pages").ParseFS(templateFS, "templates/*.tmpl"))
}

type pageData struct {
	Title      string
	User       *domain.User
	Notice     *domain.Notification
	Categories []category

	Category  *category
	Query     string
	Providers []domain.User

	// Refresh is the complete content attribute of the redirect meta tag.
	Refresh template.HTMLAttr
	Target  string
}

func (h *Handler) render(c *gin.Context, status int, name string, data pageData) {
	data.Notice = h.takeNotice(c)
	data.Categories = categories
	c.HTML(status, name, data)
}

// redirectAfter renders an interstitial that navigates to target once delay
// has elapsed. target is always one of the internal page constants.
func (h *Handler) redirectAfter(c *gin.Context, target string, delay time.Duration) {
	seconds := fmt.Sprintf("%.1f", delay.Seconds())
	h.render(c, http.StatusOK, "redirect", pageData{
		Title:   "Redirecting",
		Refresh: template.HTMLAttr(fmt.Sprintf(`content="%s; url=%s"`, seconds, target)),
		Target:  target,
	})
}

func (h *Handler) index(c *gin.Context) {
	h.render(c, http.StatusOK, "index", pageData{
		Title: "Marketplace",
		User:  h.session(c).CurrentUser(),
	})
}

func (h *Handler) dashboard(want domain.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := h.session(c).CurrentUser()
		if user == nil {
			h.notify(c, domain.NotificationError, "Please log in first")
			c.Redirect(http.StatusSeeOther, indexPage)
			return
		}
		if user.Type != want {
			c.Redirect(http.StatusSeeOther, dashboardFor(user.IsProvider()))
			return
		}

		data := pageData{Title: "Dashboard", User: user}
		if user.IsProvider() {
			data.Providers = h.store.Load().Providers(user.Category, "")
		}
		h.render(c, http.StatusOK, "dashboard", data)
	}
}

func (h *Handler) categoryPage(cat category) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.render(c, http.StatusOK, "category", pageData{
			Title:     cat.Title,
			User:      h.session(c).CurrentUser(),
			Category:  &cat,
			Providers: h.store.Load().Providers(cat.Key, ""),
		})
	}
}

func (h *Handler) searchResults(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	data := pageData{
		Title: "Search",
		User:  h.session(c).CurrentUser(),
		Query: query,
	}
	key := normalizeCategory(c.Query("category"))
	if cat, ok := categoryByKey(key); ok {
		data.Category = &cat
	}
	data.Providers = h.store.Load().Providers(key, query)
	h.render(c, http.StatusOK, "search", data)
}

func (h *Handler) navigateToCategory(c *gin.Context) {
	cat, ok := categoryByKey(normalizeCategory(c.Param("name")))
	if !ok {
		h.notify(c, domain.NotificationError, "Unknown category")
		c.Redirect(http.StatusSeeOther, indexPage)
		return
	}
	c.Redirect(http.StatusSeeOther, cat.Page)
}

func (h *Handler) performSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		h.notify(c, domain.NotificationError, "Enter a search query")
		c.Redirect(http.StatusSeeOther, indexPage)
		return
	}
	c.Redirect(http.StatusSeeOther, searchURL(query, strings.TrimSpace(c.Query("category"))))
}

func (h *Handler) registerForm(c *gin.Context) {
	userType := domain.UserType(c.Param("type"))
	if !userType.Valid() {
		c.Status(http.StatusNotFound)
		return
	}

	// form fields are prefixed with the account type, e.g. consumerEmail
	field := func(name string) string { return c.PostForm(string(userType) + name) }
	in := service.RegisterInput{
		Type:     userType,
		Name:     field("Name"),
		Email:    field("Email"),
		Phone:    field("Phone"),
		Password: field("Password"),
	}
	if userType == domain.UserTypeProvider {
		in.Category = field("Category")
		in.Description = field("Description")
	}

	if _, err := h.store.Load().Register(c.Request.Context(), in); err != nil {
		h.notify(c, domain.NotificationError, registerMessage(err))
		c.Redirect(http.StatusSeeOther, indexPage)
		return
	}

	h.notify(c, domain.NotificationSuccess, "Registration successful! You can now log in.")
	c.Redirect(http.StatusSeeOther, indexPage)
}

func (h *Handler) loginForm(c *gin.Context) {
	user, err := h.session(c).Login(c.Request.Context(), c.PostForm("loginEmail"), c.PostForm("loginPassword"))
	if err != nil {
		h.notify(c, domain.NotificationError, "Invalid email or password")
		c.Redirect(http.StatusSeeOther, indexPage)
		return
	}

	h.notify(c, domain.NotificationSuccess, fmt.Sprintf("Welcome, %s!", user.DisplayName()))
	h.redirectAfter(c, dashboardFor(user.IsProvider()), h.opts.LoginRedirectDelay)
}

func (h *Handler) logoutForm(c *gin.Context) {
	h.session(c).Logout(c.Request.Context())
	h.notify(c, domain.NotificationInfo, "You have logged out")
	h.redirectAfter(c, indexPage, h.opts.LogoutRedirectDelay)
}

// forgotPassword only simulates sending recovery instructions.
func (h *Handler) forgotPassword(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	if email == "" {
		c.Redirect(http.StatusSeeOther, indexPage)
		return
	}

	if _, ok := h.store.Load().FindByEmail(email); ok {
		h.notify(c, domain.NotificationInfo, "Password recovery instructions have been sent to your email (simulated).")
	} else {
		h.notify(c, domain.NotificationError, "No user with this email")
	}
	c.Redirect(http.StatusSeeOther, indexPage)
}

func registerMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrEmailMissing):
		return "Enter an email"
	case errors.Is(err, service.ErrPasswordMissing):
		return "Enter a password"
	case errors.Is(err, service.ErrEmailTaken):
		return "A user with this email already exists"
	default:
		return "Registration failed"
	}
}
