package identity

import "time"

// DefaultStoreTimeout bounds every record store call made by the Manager
const DefaultStoreTimeout = 10 * time.Second

// Options is the plain value implementation of Config
type Options struct {
	SigningKey             string        `json:"signing_key" mapstructure:"signing_key"`
	Issuer                 string        `json:"issuer" mapstructure:"issuer"`
	Audience               []string      `json:"audience" mapstructure:"audience"`
	SessionTokenExpiration time.Duration `json:"session_token_expiration" mapstructure:"session_token_expiration"`
	EmailTokenExpiration   time.Duration `json:"email_token_expiration" mapstructure:"email_token_expiration"`
	StoreTimeout           time.Duration `json:"store_timeout" mapstructure:"store_timeout"`
	HashCost               int           `json:"hash_cost" mapstructure:"hash_cost"`
}

var _ Config = Options{}

func (o Options) GetSigningKey() string { return o.SigningKey }

func (o Options) GetIssuer() string { return o.Issuer }

func (o Options) GetAudience() []string { return o.Audience }

func (o Options) GetSessionTokenExpiration() time.Duration { return o.SessionTokenExpiration }

func (o Options) GetEmailTokenExpiration() time.Duration { return o.EmailTokenExpiration }

func (o Options) GetStoreTimeout() time.Duration {
	if o.StoreTimeout <= 0 {
		return DefaultStoreTimeout
	}
	return o.StoreTimeout
}

func (o Options) GetHashCost() int {
	if o.HashCost == 0 {
		return DefaultHashCost
	}
	return o.HashCost
}

// String never prints the signing key
func (o Options) String() string {
	return "identity.Options{issuer=" + o.Issuer + " signing_key=[redacted]}"
}
