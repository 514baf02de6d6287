package httpapi

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/MrEthical07/jwtsession"
	"github.com/MrEthical07/jwtsession/middleware"
	"go.uber.org/zap"
)

type sessionResponse struct {
	SessionID string `json:"session_id"`
	ExpiresIn int64  `json:"expires_in"`
}

type destroyResponse struct {
	Destroyed int `json:"destroyed"`
}

type identityResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	UID       string    `json:"uid,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type meResponse struct {
	Email    string            `json:"email"`
	Identity *identityResponse `json:"identity,omitempty"`
}

type currentSessionResponse struct {
	SessionID  string    `json:"session_id"`
	IdentityID string    `json:"identity_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SessionHandler serves the session endpoints.
type SessionHandler struct {
	engine *jwtsession.Engine
	opts   Options
	logger *zap.Logger
}

// Create handles POST /api/v2/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromRequest(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	res, err := h.engine.CreateSession(r.Context(), token)
	if err != nil {
		h.fail(w, err)
		return
	}

	maxAge := int(math.Ceil(res.TTL.Seconds()))
	http.SetCookie(w, h.cookie(res.SessionID, maxAge))
	respondJSON(w, http.StatusCreated, sessionResponse{
		SessionID: res.SessionID,
		ExpiresIn: int64(maxAge),
	})
}

// Destroy handles DELETE /api/v2/sessions. It succeeds whether or not a
// session existed.
func (h *SessionHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromRequest(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	n, err := h.engine.DestroySessions(r.Context(), token)
	if err != nil {
		h.fail(w, err)
		return
	}

	http.SetCookie(w, h.cookie("", -1))
	respondJSON(w, http.StatusOK, destroyResponse{Destroyed: n})
}

// Me handles GET /api/v2/me behind middleware.Guard.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	out := meResponse{Email: res.Email}
	if res.Identity != nil {
		out.Identity = &identityResponse{
			ID:        res.Identity.ID,
			Email:     res.Identity.Email,
			UID:       res.Identity.UID,
			CreatedAt: res.Identity.CreatedAt,
		}
	}
	respondJSON(w, http.StatusOK, out)
}

// Current handles GET /api/v2/session behind middleware.RequireSession.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, currentSessionResponse{
		SessionID:  info.SessionID,
		IdentityID: info.IdentityID,
		ExpiresAt:  info.ExpiresAt.UTC(),
	})
}

func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SessionHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *SessionHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jwtsession.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, jwtsession.ErrThrottled):
		respondError(w, http.StatusTooManyRequests, "too many requests")
	case errors.Is(err, jwtsession.ErrSessionBackend):
		respondError(w, http.StatusServiceUnavailable, "unavailable")
	default:
		h.logger.Error("session request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *SessionHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     h.opts.CookiePath,
		Domain:   h.opts.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
