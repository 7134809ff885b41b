// Package auth verifies and mints the bearer tokens that identify registry
// callers. The token subject is the caller principal.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/louisbranch/didregistry/internal/platform/config"
	apperrors "github.com/louisbranch/didregistry/internal/platform/errors"
)

const (
	// DefaultIssuer is the expected iss claim.
	DefaultIssuer = "didregistry"
	// DefaultAudience is the expected aud claim.
	DefaultAudience = "didregistry"
	// DefaultTTL is the lifetime of issued tokens.
	DefaultTTL = 24 * time.Hour
	// MinKeySize is the minimum HMAC key length in bytes.
	MinKeySize = 32

	signingMethod = "HS256"
)

// Settings holds raw env values before validation.
type Settings struct {
	HMACKey  string `env:"AUTH_HMAC_KEY"`
	Issuer   string `env:"AUTH_ISSUER" envDefault:"didregistry"`
	Audience string `env:"AUTH_AUDIENCE" envDefault:"didregistry"`
}

// Config holds a validated token key and expected claims.
type Config struct {
	Key      []byte
	Issuer   string
	Audience string
	Now      func() time.Time
}

// LoadConfigFromEnv reads token settings from DIDREGISTRY_AUTH_* variables.
func LoadConfigFromEnv() (Config, error) {
	var raw Settings
	if err := config.ParseEnv(&raw); err != nil {
		return Config{}, fmt.Errorf("parse auth env: %w", err)
	}
	return raw.Config()
}

// Config validates raw settings.
func (s Settings) Config() (Config, error) {
	encoded := strings.TrimSpace(s.HMACKey)
	if encoded == "" {
		return Config{}, fmt.Errorf("%sAUTH_HMAC_KEY is required", config.EnvPrefix)
	}
	key, err := decodeBase64(encoded)
	if err != nil {
		return Config{}, fmt.Errorf("decode auth hmac key: %w", err)
	}
	if len(key) < MinKeySize {
		return Config{}, fmt.Errorf("auth hmac key must be at least %d bytes", MinKeySize)
	}
	issuer := strings.TrimSpace(s.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	audience := strings.TrimSpace(s.Audience)
	if audience == "" {
		audience = DefaultAudience
	}
	return Config{Key: key, Issuer: issuer, Audience: audience, Now: time.Now}, nil
}

func (c Config) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Config) validate() error {
	if len(c.Key) < MinKeySize || c.Issuer == "" || c.Audience == "" {
		return errors.New("token config is incomplete")
	}
	return nil
}

// Verifier checks bearer tokens.
type Verifier struct {
	cfg Config
}

// NewVerifier builds a verifier from cfg.
func NewVerifier(cfg Config) (*Verifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Verifier{cfg: cfg}, nil
}

// Verify validates token and returns its subject. Failures carry
// CodeCallerUnauthenticated.
func (v *Verifier) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.New(apperrors.CodeCallerUnauthenticated, "bearer token is required")
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{signingMethod}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.cfg.now),
	)
	if err != nil {
		return "", mapJWTError(err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", apperrors.New(apperrors.CodeCallerUnauthenticated, "token subject is required")
	}
	return subject, nil
}

// Issuer mints tokens for principals.
type Issuer struct {
	cfg Config
	ttl time.Duration
}

// NewIssuer builds an issuer. A non-positive ttl selects DefaultTTL.
func NewIssuer(cfg Config, ttl time.Duration) (*Issuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{cfg: cfg, ttl: ttl}, nil
}

// Issue returns a signed token whose subject is principal.
func (i *Issuer) Issue(principal string) (string, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return "", errors.New("principal is required")
	}
	now := i.cfg.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    i.cfg.Issuer,
		Subject:   principal,
		Audience:  jwt.ClaimStrings{i.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.CodeCallerUnauthenticated, "token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.Wrap(apperrors.CodeCallerUnauthenticated, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return apperrors.Wrap(apperrors.CodeCallerUnauthenticated, "token is not for this registry", err)
	default:
		return apperrors.Wrap(apperrors.CodeCallerUnauthenticated, "token is invalid", err)
	}
}

func decodeBase64(value string) ([]byte, error) {
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
