package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Manager implements registration, login, session authentication and
// email verification on top of a Directory.
//
// Lifecycle: Unregistered -> Registered (unverified) -> Verified. The
// admin and application flags are independent of it.
type Manager struct {
	directory     Directory
	hasher        PasswordHasher
	dummy         *dummyHash
	tokens        *TokenService
	tokenConfig   TokenConfig
	validateEmail EmailValidator
	newID         IDGenerator
	storeTimeout  time.Duration
	logger        Logger
	activitySink  ActivitySink
	now           func() time.Time
}

// NewManager returns a Manager. It fails when the directory is nil or the
// configuration has no signing key.
func NewManager(directory Directory, cfg Config) (*Manager, error) {
	if directory == nil {
		return nil, goerrors.New("identity directory is required", goerrors.CategoryBadInput).
			WithTextCode(TextCodeInvalidInput)
	}

	if cfg == nil || cfg.GetSigningKey() == "" {
		return nil, ErrMissingSigningKey
	}

	tokenConfig := TokenConfig{
		SigningKey: []byte(cfg.GetSigningKey()),
		Issuer:     cfg.GetIssuer(),
		Audience:   cfg.GetAudience(),
		SessionTTL: cfg.GetSessionTokenExpiration(),
		EmailTTL:   cfg.GetEmailTokenExpiration(),
		Logger:     defLogger{},
	}

	tokens, err := NewTokenService(tokenConfig)
	if err != nil {
		return nil, err
	}

	storeTimeout := cfg.GetStoreTimeout()
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}

	hasher := NewBcryptHasher(cfg.GetHashCost())

	return &Manager{
		directory:     directory,
		hasher:        hasher,
		dummy:         newDummyHash(hasher),
		tokens:        tokens,
		tokenConfig:   tokenConfig,
		validateEmail: ValidateEmail,
		newID:         UUIDGenerator,
		storeTimeout:  storeTimeout,
		logger:        defLogger{},
		activitySink:  noopActivitySink{},
		now:           time.Now,
	}, nil
}

// WithLogger sets the logger used by the Manager and its TokenService
func (m *Manager) WithLogger(logger Logger) *Manager {
	if logger == nil {
		logger = defLogger{}
	}
	m.logger = logger
	m.tokenConfig.Logger = logger
	if tokens, err := NewTokenService(m.tokenConfig); err == nil {
		m.tokens = tokens
	}
	return m
}

// WithHasher replaces the bcrypt hasher
func (m *Manager) WithHasher(hasher PasswordHasher) *Manager {
	if hasher != nil {
		m.hasher = hasher
		m.dummy = newDummyHash(hasher)
	}
	return m
}

// WithEmailValidator swaps the email format check
func (m *Manager) WithEmailValidator(validator EmailValidator) *Manager {
	if validator != nil {
		m.validateEmail = validator
	}
	return m
}

// WithIDGenerator swaps the account id generator
func (m *Manager) WithIDGenerator(gen IDGenerator) *Manager {
	if gen != nil {
		m.newID = gen
	}
	return m
}

// WithActivitySink configures an ActivitySink for emitting identity events.
func (m *Manager) WithActivitySink(sink ActivitySink) *Manager {
	m.activitySink = normalizeActivitySink(sink)
	return m
}

// WithClock overrides the time source used for events and token claims
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now == nil {
		return m
	}
	m.now = now
	m.tokenConfig.Now = now
	if tokens, err := NewTokenService(m.tokenConfig); err == nil {
		m.tokens = tokens
	}
	return m
}

// TokenService returns the TokenService used by this Manager
func (m *Manager) TokenService() *TokenService {
	return m.tokens
}

// Register creates a new unverified account. The returned record never
// holds the plaintext secret.
func (m *Manager) Register(ctx context.Context, email, secret string, profile Profile) (*Account, error) {
	email = NormalizeEmail(email)
	if err := m.validateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}

	if secret == "" {
		return nil, ErrInvalidInput
	}

	if _, err := m.findByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !IsNotFound(err) {
		m.logger.Error("Register lookup failed", "error", err)
		return nil, err
	}

	id, err := m.newID()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate identity id")
	}

	hash, err := m.hasher.Hash(secret)
	if err != nil {
		if IsKind(err, ErrInvalidInput) {
			return nil, ErrInvalidInput
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash secret")
	}

	record := &Account{
		Email:        email,
		ID:           id,
		PasswordHash: hash,
		Profile:      profile.Clone(),
	}

	sctx, cancel := m.storeContext(ctx)
	defer cancel()

	account, err := m.directory.Insert(sctx, record)
	if err != nil {
		err = normalizeStoreError(err)
		if !IsDuplicateEmail(err) {
			m.logger.Error("Register insert failed", "error", err)
		}
		return nil, err
	}

	m.emit(ctx, ActivityEventRegistered, account, nil)

	return account, nil
}

// Login verifies the secret and returns a session token. Unknown emails
// and wrong secrets both yield ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, email, secret string) (string, error) {
	email = NormalizeEmail(email)

	account, err := m.findByEmail(ctx, email)
	if err != nil {
		if !IsNotFound(err) {
			m.logger.Error("Login lookup failed", "error", err)
			return "", err
		}
		m.hasher.Verify(secret, m.dummy.get())
		m.emit(ctx, ActivityEventLoginFailure, &Account{Email: email}, map[string]any{
			"reason": "unknown_email",
		})
		return "", ErrInvalidCredentials
	}

	if !m.hasher.Verify(secret, account.PasswordHash) {
		m.emit(ctx, ActivityEventLoginFailure, account, map[string]any{
			"reason": "secret_mismatch",
		})
		return "", ErrInvalidCredentials
	}

	token, err := m.tokens.IssueSessionToken(account.ID)
	if err != nil {
		m.logger.Error("Login failed to issue session token", "error", err)
		return "", err
	}

	m.emit(ctx, ActivityEventLoginSuccess, account, nil)

	return token, nil
}

// Authenticate resolves a session token to its account
func (m *Manager) Authenticate(ctx context.Context, token string) (*Account, error) {
	id, err := m.tokens.VerifySession(token)
	if err != nil {
		return nil, err
	}

	sctx, cancel := m.storeContext(ctx)
	defer cancel()

	account, err := m.directory.FindByID(sctx, id)
	if err != nil {
		return nil, normalizeStoreError(err)
	}

	return account, nil
}

// RequestEmailVerification issues an email token for an existing account
func (m *Manager) RequestEmailVerification(ctx context.Context, email string) (string, error) {
	account, err := m.findByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", err
	}

	token, err := m.tokens.IssueEmailToken(account.Email)
	if err != nil {
		m.logger.Error("RequestEmailVerification failed to issue token", "error", err)
		return "", err
	}

	m.emit(ctx, ActivityEventVerificationRequested, account, nil)

	return token, nil
}

// ConfirmEmailVerification marks the email of the token as verified.
// Confirming an already verified account succeeds without writing.
func (m *Manager) ConfirmEmailVerification(ctx context.Context, token string) (*Account, error) {
	email, err := m.tokens.VerifyEmail(token)
	if err != nil {
		return nil, err
	}

	account, err := m.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if account.Status.EmailVerified {
		return account, nil
	}

	account.Status.EmailVerified = true

	sctx, cancel := m.storeContext(ctx)
	defer cancel()

	updated, err := m.directory.Update(sctx, account, FieldEmailVerified)
	if err != nil {
		err = normalizeStoreError(err)
		m.logger.Error("ConfirmEmailVerification update failed", "error", err)
		return nil, err
	}

	m.emit(ctx, ActivityEventEmailVerified, updated, nil)

	return updated, nil
}

// UpdateProfile replaces the opaque profile blob of an account
func (m *Manager) UpdateProfile(ctx context.Context, email string, profile Profile) (*Account, error) {
	account, err := m.findByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}

	account.Profile = profile.Clone()

	sctx, cancel := m.storeContext(ctx)
	defer cancel()

	updated, err := m.directory.Update(sctx, account, FieldProfile)
	if err != nil {
		return nil, normalizeStoreError(err)
	}

	m.emit(ctx, ActivityEventProfileUpdated, updated, nil)

	return updated, nil
}

func (m *Manager) findByEmail(ctx context.Context, email string) (*Account, error) {
	sctx, cancel := m.storeContext(ctx)
	defer cancel()

	account, err := m.directory.FindByEmail(sctx, email)
	if err != nil {
		return nil, normalizeStoreError(err)
	}
	return account, nil
}

func (m *Manager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.storeTimeout)
}

func (m *Manager) emit(ctx context.Context, eventType ActivityEventType, account *Account, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Metadata:   metadata,
		OccurredAt: m.now(),
	}

	if account != nil {
		event.AccountID = account.ID
		event.Email = account.Email
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := normalizeActivitySink(m.activitySink).Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error", "error", err)
	}
}

var knownKinds = []*goerrors.Error{
	ErrInvalidInput,
	ErrInvalidEmail,
	ErrDuplicateEmail,
	ErrNotFound,
	ErrInvalidCredentials,
	ErrTokenInvalid,
	ErrTokenExpired,
	ErrStoreUnavailable,
}

// normalizeStoreError keeps typed errors and marks anything else coming
// out of a Directory as ErrStoreUnavailable.
func normalizeStoreError(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range knownKinds {
		if IsKind(err, kind) {
			return err
		}
	}
	return WrapStoreError(err, "")
}
