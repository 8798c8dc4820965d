// Package payment issues and checks the short-lived possession tokens that
// prove a checkout was completed.
package payment

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrTokenInvalid    = errors.New("payment token is invalid")
	ErrTokenExpired    = errors.New("payment token has expired")
	ErrAlreadyRedeemed = errors.New("payment token was already used")
)

const DefaultTTL = 30 * time.Minute

// Claims is the token payload. URL must match the configured success URL.
type Claims struct {
	URL string `json:"url"`
	jwt.RegisteredClaims
}

type SignerConfig struct {
	Secret     string
	SuccessURL string
	TTL        time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Signer issues and verifies HS256 tokens.
type Signer struct {
	config SignerConfig
	secret []byte
}

func NewWithConfig(config SignerConfig) (*Signer, error) {
	if config.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if config.SuccessURL == "" {
		return nil, errors.New("success url is required")
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Signer{
		config: config,
		secret: []byte(config.Secret),
	}, nil
}

// Issue signs a new token that expires after the configured TTL.
func (s *Signer) Issue() (string, *Claims, error) {
	now := s.config.Now()

	claims := &Claims{
		URL: s.config.SuccessURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "signing payment token")
	}

	return token, claims, nil
}

// Verify checks the signature, the expiry and the success URL of token.
func (s *Signer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.Wrap(ErrTokenInvalid, "missing token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.config.Now),
	)

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, errors.Wrap(ErrTokenInvalid, err.Error())
	case claims.URL != s.config.SuccessURL:
		return nil, errors.Wrap(ErrTokenInvalid, "unexpected url claim")
	}

	return claims, nil
}
