package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/jwtsession"
)

type authResultContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*jwtsession.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*jwtsession.AuthResult)
	return res, ok
}

// Guard authenticates the request token and stores the [jwtsession.AuthResult]
// in the request context.
func Guard(engine *jwtsession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := TokenFromRequest(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Authenticate(r.Context(), token)
			if errors.Is(err, jwtsession.ErrThrottled) {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
