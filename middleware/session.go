package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/jwtsession"
)

// SessionCookieName is the cookie carrying the session id.
const SessionCookieName = "session_id"

type sessionContextKey struct{}

func SessionFromContext(ctx context.Context) (*jwtsession.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(*jwtsession.SessionInfo)
	return info, ok
}

// RequireSession admits requests whose session cookie names a live
// session. Backend failures answer 503 rather than 401.
func RequireSession(engine *jwtsession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			info, err := engine.LookupSession(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, jwtsession.ErrSessionBackend) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
