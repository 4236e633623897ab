package identity

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds identity options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetSessionTokenExpiration() time.Duration
	GetEmailTokenExpiration() time.Duration
	GetStoreTimeout() time.Duration
	GetHashCost() int
}

// PasswordHasher hashes and verifies plaintext secrets
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

// Directory is the uniqueness enforcing lookup layer over accounts.
// Implementations must make Insert atomic per email so that concurrent
// inserts for the same key yield exactly one success.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	// FindByID is not backed by the primary key, implementations scan.
	FindByID(ctx context.Context, id string) (*Account, error)
	Insert(ctx context.Context, account *Account) (*Account, error)
	// Update overwrites the given fields of the account stored under
	// account.Email. No fields means every mutable field.
	Update(ctx context.Context, account *Account, fields ...Field) (*Account, error)
}

// EmailValidator returns an error for malformed addresses
type EmailValidator func(email string) error

// IDGenerator returns a new unique, time ordered, account id
type IDGenerator func() (string, error)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print("[ERR] IDENTITY " + render(format, args...))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Print("[WRN] IDENTITY " + render(format, args...))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print("[INF] IDENTITY " + render(format, args...))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print("[DBG] IDENTITY " + render(format, args...))
}

// render accepts both printf style calls and message + key/value pairs.
func render(format string, args ...any) string {
	var out string
	switch {
	case len(args) == 0:
		out = format
	case strings.Contains(format, "%"):
		out = fmt.Sprintf(format, args...)
	default:
		var b strings.Builder
		b.WriteString(format)
		for i := 0; i < len(args); i += 2 {
			if i+1 < len(args) {
				fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			} else {
				fmt.Fprintf(&b, " %v", args[i])
			}
		}
		out = b.String()
	}
	return newline(out)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
