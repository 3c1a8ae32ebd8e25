package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/service"
)

const (
	browserCookie = "marketplace_browser"
	browserIDKey  = "browser_id"
)

// browserIdentity makes sure every request carries a signed browser id. The id
// scopes the session record of that browser.
func (h *Handler) browserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(browserCookie); err == nil && raw != "" {
			if id, err := h.opts.Tokens.Verify(raw); err == nil {
				c.Set(browserIDKey, id)
				c.Next()
				return
			}
		}

		id, token, err := h.opts.Tokens.Issue()
		if err != nil {
			h.logger.Errorf("issue browser token: %v", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		h.setCookie(c, browserCookie, token, int(h.opts.Tokens.TTL().Seconds()))
		c.Set(browserIDKey, id)
		c.Next()
	}
}

// session opens the session of the requesting browser. Only valid behind requireReady.
func (h *Handler) session(c *gin.Context) *service.Session {
	return h.store.Load().OpenSession(c.Request.Context(), c.GetString(browserIDKey))
}

func (h *Handler) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.opts.SecureCookies, true)
}
