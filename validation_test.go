package identity_test

import (
	"strings"
	"testing"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", identity.NormalizeEmail("  A@X.com\t"))
	assert.Equal(t, "", identity.NormalizeEmail("   "))
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"a@x.com", true},
		{"first.last+tag@sub.example.org", true},
		{"", false},
		{"plain", false},
		{"@x.com", false},
		{"a@", false},
		{"a b@x.com", false},
		{strings.Repeat("a", 250) + "@x.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := identity.ValidateEmail(tt.email)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
