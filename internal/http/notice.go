package http

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"marketplace/internal/domain"
)

const (
	noticeCookie     = "marketplace_notice"
	pendingNoticeKey = "pending_notice"
)

// notify stores a notification for the next rendered page, which may be the
// response of the current request.
func (h *Handler) notify(c *gin.Context, kind domain.NotificationKind, message string) {
	n := domain.Notification{Kind: kind, Message: message}
	c.Set(pendingNoticeKey, n)

	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.Warnf("encode notification: %v", err)
		return
	}
	h.setCookie(c, noticeCookie, base64.RawURLEncoding.EncodeToString(payload), int(h.opts.NoticeTTL.Seconds()))
}

// takeNotice returns the pending notification, if any, and clears it.
func (h *Handler) takeNotice(c *gin.Context) *domain.Notification {
	if v, ok := c.Get(pendingNoticeKey); ok {
		n := v.(domain.Notification)
		h.setCookie(c, noticeCookie, "", -1)
		return &n
	}

	raw, err := c.Cookie(noticeCookie)
	if err != nil || raw == "" {
		return nil
	}
	h.setCookie(c, noticeCookie, "", -1)

	payload, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var n domain.Notification
	if err := json.Unmarshal(payload, &n); err != nil || n.Message == "" {
		return nil
	}
	switch n.Kind {
	case domain.NotificationSuccess, domain.NotificationError, domain.NotificationInfo:
	default:
		n.Kind = domain.NotificationInfo
	}
	return &n
}
