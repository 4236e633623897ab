package identity

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenConfig holds the token service options. SigningKey is required.
type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   []string
	// SessionTTL and EmailTTL add an exp claim when positive. Zero issues
	// tokens that stay valid until the signing key is rotated.
	SessionTTL time.Duration
	EmailTTL   time.Duration
	Now        func() time.Time
	Logger     Logger
}

// TokenService signs and verifies session and email tokens (HS256).
// It is safe for concurrent use, nothing is mutated after construction.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	sessionTTL time.Duration
	emailTTL   time.Duration
	now        func() time.Time
	logger     Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	if cfg.SessionTTL < 0 || cfg.EmailTTL < 0 {
		return nil, goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput).
			WithTextCode(TextCodeInvalidInput)
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	var aud jwt.ClaimStrings
	if len(cfg.Audience) > 0 {
		aud = make(jwt.ClaimStrings, len(cfg.Audience))
		copy(aud, cfg.Audience)
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	return &TokenService{
		signingKey: key,
		issuer:     cfg.Issuer,
		audience:   aud,
		sessionTTL: cfg.SessionTTL,
		emailTTL:   cfg.EmailTTL,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}, nil
}

// IssueSessionToken signs a token whose payload is the account id
func (ts *TokenService) IssueSessionToken(id string) (string, error) {
	return ts.issue(TokenKindSession, id, ts.sessionTTL)
}

// IssueEmailToken signs a token whose payload is the email address
func (ts *TokenService) IssueEmailToken(email string) (string, error) {
	return ts.issue(TokenKindEmail, email, ts.emailTTL)
}

// Verify checks the signature and returns the payload of a token of any kind
func (ts *TokenService) Verify(token string) (string, error) {
	claims, err := ts.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Payload(), nil
}

// VerifySession verifies a token and requires it to be a session token
func (ts *TokenService) VerifySession(token string) (string, error) {
	return ts.verifyKind(token, TokenKindSession)
}

// VerifyEmail verifies a token and requires it to be an email token
func (ts *TokenService) VerifyEmail(token string) (string, error) {
	return ts.verifyKind(token, TokenKindEmail)
}

// Parse validates a token string, returning its claims
func (ts *TokenService) Parse(tokenString string) (*TokenClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService parse encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		ts.logger.Debug("TokenService parse rejected token", "error", err)
		return nil, goerrors.Wrap(err, ErrTokenInvalid.Category, ErrTokenInvalid.Message).
			WithTextCode(ErrTokenInvalid.TextCode)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.Payload() == "" {
		return nil, ErrTokenInvalid
	}

	// the parser checks one audience, the token must carry all of them
	for _, aud := range ts.audience[min(1, len(ts.audience)):] {
		if !slices.Contains(claims.Audience, aud) {
			ts.logger.Debug("TokenService rejected token audience", "missing", aud)
			return nil, ErrTokenInvalid
		}
	}

	return claims, nil
}

func (ts *TokenService) verifyKind(token string, kind TokenKind) (string, error) {
	claims, err := ts.Parse(token)
	if err != nil {
		return "", err
	}

	if claims.Kind != kind {
		ts.logger.Debug("TokenService rejected token kind", "want", kind, "got", claims.Kind)
		return "", ErrTokenInvalid
	}

	return claims.Payload(), nil
}

func (ts *TokenService) issue(kind TokenKind, payload string, ttl time.Duration) (string, error) {
	if payload == "" {
		return "", ErrInvalidInput
	}

	now := ts.now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   ts.issuer,
			Subject:  payload,
			Audience: ts.audience,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Kind: kind,
	}

	if ttl > 0 {
		claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}
