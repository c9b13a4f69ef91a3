// Telegram login HTTP handler.
//
// This file exposes the endpoint that verifies Telegram Login Widget
// payloads:
//   - POST /auth/telegram
//
// Verification itself (HMAC over the data-check string, freshness window)
// lives in the telegram package; the handler only shapes the HTTP exchange.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teampulse/pulse-backend/internal/telegram"
)

// LoginVerifier validates a Telegram Login Widget payload.
type LoginVerifier interface {
	Verify(d telegram.LoginData) error
}

// TelegramLoginResponse is returned after a successful verification.
type TelegramLoginResponse struct {
	TgUserID int64  `json:"tg_user_id"`
	Username string `json:"username,omitempty"`
}

// TelegramLogin verifies a signed login payload from the Telegram Login
// Widget. A bad or stale signature responds 401; the handler never reveals
// which check failed.
func (h *Handlers) TelegramLogin(c *gin.Context) {
	if h.verifier == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "telegram login is not configured")
		return
	}

	var d telegram.LoginData
	if err := c.ShouldBindJSON(&d); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if err := h.verifier.Verify(d); err != nil {
		switch {
		case errors.Is(err, telegram.ErrMissingHash),
			errors.Is(err, telegram.ErrInvalidHash),
			errors.Is(err, telegram.ErrAuthDataExpired):
			fail(c, http.StatusUnauthorized, ErrCodeInvalidLogin, "login verification failed")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, TelegramLoginResponse{TgUserID: d.ID, Username: d.Username})
}
