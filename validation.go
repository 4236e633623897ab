package identity

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateEmail checks the address format only, no DNS lookups.
func ValidateEmail(email string) error {
	return validation.Validate(email,
		validation.Required,
		validation.Length(3, 254),
		is.Email,
	)
}
