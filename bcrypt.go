package identity

import (
	"crypto/sha256"
	"encoding/base64"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor, 2^10 rounds
const DefaultHashCost = 10

// bcrypt ignores input past 72 bytes and newer versions reject it.
const maxBcryptInput = 72

// BcryptHasher implements PasswordHasher with a fixed bcrypt cost
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = BcryptHasher{}

// NewBcryptHasher returns a hasher using cost, or DefaultHashCost when
// cost is outside the bcrypt range.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}
	return BcryptHasher{cost: cost}
}

// Cost returns the configured work factor
func (h BcryptHasher) Cost() int {
	if h.cost == 0 {
		return DefaultHashCost
	}
	return h.cost
}

// Hash will generate a salted password hash. The salt is embedded in the
// returned string.
func (h BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrInvalidInput
	}

	out, err := bcrypt.GenerateFromPassword(prepareSecret(secret), h.Cost())
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify will validate the given cleartext secret matches the hash.
// Malformed hashes never match.
func (h BcryptHasher) Verify(secret, hash string) bool {
	if secret == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), prepareSecret(secret)) == nil
}

// HashPassword hashes with DefaultHashCost
func HashPassword(secret string) (string, error) {
	return NewBcryptHasher(DefaultHashCost).Hash(secret)
}

// ComparePasswordAndHash returns ErrInvalidCredentials when secret does
// not match hash
func ComparePasswordAndHash(secret, hash string) error {
	if !NewBcryptHasher(DefaultHashCost).Verify(secret, hash) {
		return ErrInvalidCredentials
	}
	return nil
}

func prepareSecret(secret string) []byte {
	if len(secret) <= maxBcryptInput {
		return []byte(secret)
	}
	sum := sha256.Sum256([]byte(secret))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// dummyHash is the hash login compares against for unknown emails, built
// lazily with the same hasher as real records so both failure paths cost
// the same.
type dummyHash struct {
	once   sync.Once
	hasher PasswordHasher
	hash   string
}

func newDummyHash(h PasswordHasher) *dummyHash {
	return &dummyHash{hasher: h}
}

func (d *dummyHash) get() string {
	d.once.Do(func() {
		out, err := d.hasher.Hash(uuid.NewString())
		if err != nil {
			out, _ = HashPassword(uuid.NewString())
		}
		d.hash = out
	})
	return d.hash
}
