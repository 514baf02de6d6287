package middleware

import (
	"net/http"
	"strings"
)

// TokenFieldName is the form and query field accepted as an alternative to
// the Authorization header.
const TokenFieldName = "token"

// TokenFromRequest extracts the bearer token from the Authorization header
// or, failing that, from the "token" form or query field.
func TokenFromRequest(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	token := strings.TrimSpace(r.FormValue(TokenFieldName))
	if token == "" {
		return "", false
	}
	return token, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
