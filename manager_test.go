package identity_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testOptions() identity.Options {
	return identity.Options{
		SigningKey: "test-signing-key",
		Issuer:     "test-issuer",
		HashCost:   bcrypt.MinCost,
	}
}

func newTestManager(t *testing.T, dir identity.Directory) *identity.Manager {
	t.Helper()
	m, err := identity.NewManager(dir, testOptions())
	require.NoError(t, err)
	return m.WithLogger(newNopLogger())
}

// countingDirectory counts writes that reach the store
type countingDirectory struct {
	*identity.MemoryDirectory
	mu      sync.Mutex
	updates int
}

func (c *countingDirectory) Update(ctx context.Context, account *identity.Account, fields ...identity.Field) (*identity.Account, error) {
	c.mu.Lock()
	c.updates++
	c.mu.Unlock()
	return c.MemoryDirectory.Update(ctx, account, fields...)
}

func TestNewManager(t *testing.T) {
	t.Run("requires signing key", func(t *testing.T) {
		_, err := identity.NewManager(identity.NewMemoryDirectory(), identity.Options{})
		assert.ErrorIs(t, err, identity.ErrMissingSigningKey)
	})

	t.Run("requires directory", func(t *testing.T) {
		_, err := identity.NewManager(nil, testOptions())
		assert.Error(t, err)
	})
}

func TestManagerRegisterLoginAuthenticate(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, identity.NewMemoryDirectory())

	account, err := m.Register(ctx, "a@x.com", "pw1", identity.Profile{})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", account.Email)
	assert.NotEmpty(t, account.ID)
	assert.NotEqual(t, "pw1", account.PasswordHash)
	assert.False(t, account.Admin)
	assert.False(t, account.Status.EmailVerified)
	assert.False(t, account.Status.ApplicationComplete)

	token, err := m.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := m.TokenService().Verify(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, id)

	authenticated, err := m.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", authenticated.Email)
	assert.Equal(t, account.ID, authenticated.ID)
}

func TestManagerRegisterLoginProperty(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, identity.NewMemoryDirectory())

	pairs := []struct {
		email  string
		secret string
	}{
		{"user1@example.com", "p"},
		{"user.two+tag@example.org", "correct horse battery staple"},
		{"x@sub.domain.io", "ünïcødé-sëcret"},
		{"long@example.com", fmt.Sprintf("%0100d", 7)},
	}

	for _, p := range pairs {
		t.Run(p.email, func(t *testing.T) {
			_, err := m.Register(ctx, p.email, p.secret, nil)
			require.NoError(t, err)

			token, err := m.Login(ctx, p.email, p.secret)
			require.NoError(t, err)

			acc, err := m.Authenticate(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, p.email, acc.Email)

			_, err = m.Login(ctx, p.email, p.secret+"!")
			assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
		})
	}
}

func TestManagerRegisterValidation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, identity.NewMemoryDirectory())

	tests := []struct {
		name   string
		email  string
		secret string
		want   error
	}{
		{name: "empty email", email: "", secret: "pw", want: identity.ErrInvalidEmail},
		{name: "missing at", email: "not-an-email", secret: "pw", want: identity.ErrInvalidEmail},
		{name: "missing domain", email: "user@", secret: "pw", want: identity.ErrInvalidEmail},
		{name: "empty secret", email: "ok@example.com", secret: "", want: identity.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Register(ctx, tt.email, tt.secret, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestManagerRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, identity.NewMemoryDirectory())

	_, err := m.Register(ctx, "a@x.com", "pw1", identity.Profile{})
	require.NoError(t, err)

	_, err = m.Register(ctx, "a@x.com", "pw1", identity.Profile{})
	assert.ErrorIs(t, err, identity.ErrDuplicateEmail)

	_, err = m.Register(ctx, "  A@X.COM ", "other", identity.Profile{})
	assert.ErrorIs(t, err, identity.ErrDuplicateEmail)
}

func TestManagerRegisterConcurrent(t *testing.T) {
	ctx := context.Background()
	dir := identity.NewMemoryDirectory()
	m := newTestManager(t, dir)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = m.Register(ctx, "race@example.com", fmt.Sprintf("pw-%d", i), nil)
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, identity.ErrDuplicateEmail):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)
	assert.Equal(t, 1, dir.Len())
}

func TestManagerLoginDoesNotLeakExistence(t *testing.T) {
	ctx := context.Background()
	sink := &capturingSink{}
	m := newTestManager(t, identity.NewMemoryDirectory()).WithActivitySink(sink)

	_, err := m.Register(ctx, "known@example.com", "right", nil)
	require.NoError(t, err)

	_, wrongSecret := m.Login(ctx, "known@example.com", "wrong")
	_, unknownEmail := m.Login(ctx, "unknown@example.com", "right")

	require.Error(t, wrongSecret)
	require.Error(t, unknownEmail)
	assert.ErrorIs(t, wrongSecret, identity.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, identity.ErrInvalidCredentials)
	assert.Equal(t, wrongSecret.Error(), unknownEmail.Error())
	assert.NotContains(t, wrongSecret.Error(), "right")
	assert.NotContains(t, wrongSecret.Error(), "wrong")

	assert.Equal(t, []identity.ActivityEventType{
		identity.ActivityEventRegistered,
		identity.ActivityEventLoginFailure,
		identity.ActivityEventLoginFailure,
	}, sink.types())
}

func TestManagerLoginNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, identity.NewMemoryDirectory())

	account, err := m.Register(ctx, " Mixed@Example.COM ", "pw", nil)
	require.NoError(t, err)
	assert.Equal(t, "mixed@example.com", account.Email)

	_, err = m.Login(ctx, "MIXED@example.com", "pw")
	assert.NoError(t, err)
}

func TestManagerStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	dir := new(MockDirectory)
	m := newTestManager(t, dir)

	down := errors.New("dial tcp 10.0.0.1:5432: connection refused")
	dir.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, down)

	_, err := m.Login(ctx, "a@x.com", "pw1")
	require.Error(t, err)
	assert.True(t, identity.IsStoreUnavailable(err))
	assert.False(t, identity.IsInvalidCredentials(err))
	assert.False(t, identity.IsNotFound(err))

	_, err = m.Register(ctx, "a@x.com", "pw1", nil)
	assert.True(t, identity.IsStoreUnavailable(err))

	_, err = m.RequestEmailVerification(ctx, "a@x.com")
	assert.True(t, identity.IsStoreUnavailable(err))

	dir.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestManagerStoreCallsHaveDeadline(t *testing.T) {
	ctx := context.Background()
	dir := new(MockDirectory)
	m := newTestManager(t, dir)

	hasDeadline := mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})

	dir.On("FindByEmail", hasDeadline, "a@x.com").Return(nil, identity.ErrNotFound).Once()
	dir.On("Insert", hasDeadline, mock.AnythingOfType("*identity.Account")).
		Return(&identity.Account{Email: "a@x.com", ID: "id-1"}, nil).Once()

	_, err := m.Register(ctx, "a@x.com", "pw1", nil)
	require.NoError(t, err)

	dir.AssertExpectations(t)
}

func TestManagerAuthenticate(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, identity.NewMemoryDirectory())

	_, err := m.Register(ctx, "a@x.com", "pw1", nil)
	require.NoError(t, err)

	t.Run("rejects email tokens", func(t *testing.T) {
		emailToken, err := m.RequestEmailVerification(ctx, "a@x.com")
		require.NoError(t, err)

		_, err = m.Authenticate(ctx, emailToken)
		assert.ErrorIs(t, err, identity.ErrTokenInvalid)
	})

	t.Run("rejects tokens from another secret", func(t *testing.T) {
		other, err := identity.NewManager(identity.NewMemoryDirectory(), identity.Options{
			SigningKey: "another-key",
			Issuer:     "test-issuer",
			HashCost:   bcrypt.MinCost,
		})
		require.NoError(t, err)

		token, err := other.TokenService().IssueSessionToken("whatever")
		require.NoError(t, err)

		_, err = m.Authenticate(ctx, token)
		assert.True(t, identity.IsTokenInvalid(err))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := m.Authenticate(ctx, "garbage")
		assert.True(t, identity.IsTokenInvalid(err))
	})

	t.Run("account removed out of band", func(t *testing.T) {
		token, err := m.TokenService().IssueSessionToken("deleted-id")
		require.NoError(t, err)

		_, err = m.Authenticate(ctx, token)
		assert.ErrorIs(t, err, identity.ErrNotFound)
	})
}

func TestManagerEmailVerification(t *testing.T) {
	ctx := context.Background()
	dir := &countingDirectory{MemoryDirectory: identity.NewMemoryDirectory()}
	sink := &capturingSink{}
	m := newTestManager(t, dir).WithActivitySink(sink)

	_, err := m.Register(ctx, "a@x.com", "pw1", identity.Profile{"name": "Ada"})
	require.NoError(t, err)

	_, err = m.RequestEmailVerification(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, identity.ErrNotFound)

	token, err := m.RequestEmailVerification(ctx, "a@x.com")
	require.NoError(t, err)

	first, err := m.ConfirmEmailVerification(ctx, token)
	require.NoError(t, err)
	assert.True(t, first.Status.EmailVerified)
	assert.Equal(t, "Ada", first.Profile["name"])

	second, err := m.ConfirmEmailVerification(ctx, token)
	require.NoError(t, err)
	assert.True(t, second.Status.EmailVerified)

	assert.Equal(t, 1, dir.updates)

	stored, err := dir.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, stored.Status.EmailVerified)

	assert.Equal(t, []identity.ActivityEventType{
		identity.ActivityEventRegistered,
		identity.ActivityEventVerificationRequested,
		identity.ActivityEventEmailVerified,
	}, sink.types())
}

func TestManagerConfirmEmailVerificationErrors(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, identity.NewMemoryDirectory())

	_, err := m.Register(ctx, "a@x.com", "pw1", nil)
	require.NoError(t, err)

	session, err := m.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = m.ConfirmEmailVerification(ctx, session)
	assert.ErrorIs(t, err, identity.ErrTokenInvalid)

	orphan, err := m.TokenService().IssueEmailToken("gone@x.com")
	require.NoError(t, err)

	_, err = m.ConfirmEmailVerification(ctx, orphan)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestManagerExpiringTokens(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	opts := testOptions()
	opts.EmailTokenExpiration = time.Hour

	m, err := identity.NewManager(identity.NewMemoryDirectory(), opts)
	require.NoError(t, err)
	m.WithLogger(newNopLogger()).WithClock(func() time.Time { return now })

	_, err = m.Register(ctx, "a@x.com", "pw1", nil)
	require.NoError(t, err)

	token, err := m.RequestEmailVerification(ctx, "a@x.com")
	require.NoError(t, err)

	m.WithClock(func() time.Time { return now.Add(2 * time.Hour) })

	_, err = m.ConfirmEmailVerification(ctx, token)
	assert.ErrorIs(t, err, identity.ErrTokenExpired)
}

func TestManagerUpdateProfile(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, identity.NewMemoryDirectory())

	created, err := m.Register(ctx, "a@x.com", "pw1", identity.Profile{"name": "Ada"})
	require.NoError(t, err)

	updated, err := m.UpdateProfile(ctx, "a@x.com", identity.Profile{
		"name":  "Ada Lovelace",
		"frq1":  "free text answer",
		"phone": "5551234567",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Ada Lovelace", updated.Profile["name"])
	assert.Equal(t, "free text answer", updated.Profile["frq1"])

	_, err = m.UpdateProfile(ctx, "nobody@x.com", nil)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestManagerIDGenerators(t *testing.T) {
	ctx := context.Background()

	m := newTestManager(t, identity.NewMemoryDirectory()).WithIDGenerator(identity.ULIDGenerator)
	acc, err := m.Register(ctx, "ulid@x.com", "pw", nil)
	require.NoError(t, err)
	assert.Len(t, acc.ID, 26)

	failing := newTestManager(t, identity.NewMemoryDirectory()).WithIDGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	})
	_, err = failing.Register(ctx, "fail@x.com", "pw", nil)
	assert.Error(t, err)
}

func TestManagerCustomEmailValidator(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, identity.NewMemoryDirectory()).
		WithEmailValidator(func(email string) error {
			if email != "only@allowed.com" {
				return errors.New("rejected")
			}
			return nil
		})

	_, err := m.Register(ctx, "valid@example.com", "pw", nil)
	assert.ErrorIs(t, err, identity.ErrInvalidEmail)

	_, err = m.Register(ctx, "only@allowed.com", "pw", nil)
	assert.NoError(t, err)
}

// taggedHasher marks its hashes and records every hash Verify sees
type taggedHasher struct {
	tag      string
	mu       sync.Mutex
	verified []string
}

func (h *taggedHasher) Hash(secret string) (string, error) {
	return h.tag + ":" + secret, nil
}

func (h *taggedHasher) Verify(secret, hash string) bool {
	h.mu.Lock()
	h.verified = append(h.verified, hash)
	h.mu.Unlock()
	return hash == h.tag+":"+secret
}

func TestManagerUnknownEmailUsesOwnHasher(t *testing.T) {
	ctx := context.Background()

	first := &taggedHasher{tag: "first"}
	second := &taggedHasher{tag: "second"}

	m1 := newTestManager(t, identity.NewMemoryDirectory()).WithHasher(first)
	m2 := newTestManager(t, identity.NewMemoryDirectory()).WithHasher(second)

	_, err := m1.Login(ctx, "nobody@x.com", "pw")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	_, err = m2.Login(ctx, "nobody@x.com", "pw")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	require.Len(t, first.verified, 1)
	require.Len(t, second.verified, 1)
	assert.True(t, strings.HasPrefix(first.verified[0], "first:"))
	assert.True(t, strings.HasPrefix(second.verified[0], "second:"))
}
