package identity

import (
	"time"

	"github.com/uptrace/bun"
)

// Profile is the opaque profile blob (name, contact fields, free text
// answers). It is stored and returned verbatim.
type Profile map[string]any

// Clone returns a deep copy of the profile
func (p Profile) Clone() Profile {
	if p == nil {
		return nil
	}
	return cloneMap(p)
}

// AccountStatus holds the lifecycle flags of an account
type AccountStatus struct {
	// EmailVerified only moves from false to true
	EmailVerified bool `bun:"email_verified,notnull,default:false" json:"email_verified"`
	// ApplicationComplete is owned by the application workflow
	ApplicationComplete bool `bun:"application_complete,notnull,default:false" json:"application_complete"`
}

// Account is the stored identity record, keyed by email
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	Email         string        `bun:"email,pk" json:"email"`
	ID            string        `bun:"id,notnull" json:"id"`
	PasswordHash  string        `bun:"password_hash,notnull" json:"-"`
	Admin         bool          `bun:"admin,notnull,default:false" json:"admin"`
	Profile       Profile       `bun:"profile,type:jsonb" json:"profile,omitempty"`
	Status        AccountStatus `bun:"embed:status_" json:"status"`
	CreatedAt     time.Time     `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time     `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// IsVerified reports whether the account email has been confirmed
func (a *Account) IsVerified() bool {
	return a != nil && a.Status.EmailVerified
}

// Clone returns a copy of the account that shares no mutable state
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Profile = a.Profile.Clone()
	return &c
}

// Field names a mutable account attribute for partial updates
type Field string

const (
	FieldPasswordHash        Field = "password_hash"
	FieldAdmin               Field = "admin"
	FieldProfile             Field = "profile"
	FieldEmailVerified       Field = "status_email_verified"
	FieldApplicationComplete Field = "status_application_complete"
)

// MutableFields lists every field Update may overwrite. Email, ID and
// CreatedAt are never updated.
var MutableFields = []Field{
	FieldPasswordHash,
	FieldAdmin,
	FieldProfile,
	FieldEmailVerified,
	FieldApplicationComplete,
}

// Apply copies the named fields from src into dst
func (f Field) Apply(dst, src *Account) {
	switch f {
	case FieldPasswordHash:
		dst.PasswordHash = src.PasswordHash
	case FieldAdmin:
		dst.Admin = src.Admin
	case FieldProfile:
		dst.Profile = src.Profile.Clone()
	case FieldEmailVerified:
		// one way, a verified email never goes back to unverified
		dst.Status.EmailVerified = dst.Status.EmailVerified || src.Status.EmailVerified
	case FieldApplicationComplete:
		dst.Status.ApplicationComplete = src.Status.ApplicationComplete
	}
}

// Valid reports whether f is a known mutable field
func (f Field) Valid() bool {
	for _, m := range MutableFields {
		if m == f {
			return true
		}
	}
	return false
}

// ValidateInsert checks a new record carries an email and a credential hash
func (a *Account) ValidateInsert() error {
	if a == nil || a.Email == "" || a.PasswordHash == "" {
		return ErrInvalidInput
	}
	return nil
}

// UpdateFields resolves the fields an update writes, MutableFields when none
// are given. Unknown fields and an empty credential hash are rejected.
func UpdateFields(account *Account, fields ...Field) ([]Field, error) {
	if account == nil || account.Email == "" {
		return nil, ErrInvalidInput
	}

	if len(fields) == 0 {
		fields = MutableFields
	}

	for _, f := range fields {
		if !f.Valid() {
			return nil, ErrInvalidInput
		}
		if f == FieldPasswordHash && account.PasswordHash == "" {
			return nil, ErrInvalidInput
		}
	}

	return fields, nil
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Profile:
		return Profile(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
