package identity

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ExtractEmail validates a raw email claim and returns its normalized form.
func ExtractEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	if email == "" {
		return "", AttributeError{Attribute: "email", Reason: "E-Mail is blank."}
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", AttributeError{Attribute: "email", Reason: "E-Mail is invalid."}
	}
	return email, nil
}
