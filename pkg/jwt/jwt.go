// Package jwt issues and verifies HS256 bearer tokens carrying the
// authenticated user identifier. Tokens follow RFC 7519; verification uses
// constant-time signature comparison and rejects unexpected algorithms.
package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrInvalidSignature  = errors.New("jwt: invalid signature")
	ErrUnexpectedAlg     = errors.New("jwt: unexpected signing algorithm")
	ErrExpiredToken      = errors.New("jwt: token expired")
)

const headerAlg = "HS256"

// Config is the environment-driven token configuration.
type Config struct {
	SigningKey string        `env:"JWT_SIGNING_KEY,required"`
	TTL        time.Duration `env:"JWT_TTL" envDefault:"24h"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"taskflow"`
}

type header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// Claims are the registered claims carried by taskflow access tokens. The
// subject is the user identifier.
type Claims struct {
	ID        string `json:"jti,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// Valid checks the temporal claims against the current time. Zero values are
// treated as unset per RFC 7519.
func (c Claims) Valid() error {
	now := time.Now().Unix()
	if c.ExpiresAt > 0 && now > c.ExpiresAt {
		return ErrExpiredToken
	}
	if c.NotBefore > 0 && now < c.NotBefore {
		return ErrInvalidToken
	}
	return nil
}

// UserID parses the subject claim as a user identifier.
func (c Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidToken, err)
	}
	return id, nil
}

// Service signs and verifies access tokens with a single HMAC-SHA256 key.
type Service struct {
	key    []byte
	ttl    time.Duration
	issuer string
}

// New creates a Service from cfg. The signing key must be non-empty; keys of
// at least 32 bytes are recommended for HMAC-SHA256.
func New(cfg Config) (*Service, error) {
	if cfg.SigningKey == "" {
		return nil, ErrMissingSigningKey
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{key: []byte(cfg.SigningKey), ttl: ttl, issuer: cfg.Issuer}, nil
}

// Generate issues a token for userID valid for the configured TTL.
func (s *Service) Generate(userID uuid.UUID) (string, error) {
	now := time.Now()
	return s.GenerateWithClaims(Claims{
		ID:        uuid.NewString(),
		Subject:   userID.String(),
		Issuer:    s.issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
}

// GenerateWithClaims signs the provided claims as-is.
func (s *Service) GenerateWithClaims(claims Claims) (string, error) {
	headerJSON, err := json.Marshal(header{Type: "JWT", Algorithm: headerAlg})
	if err != nil {
		return "", fmt.Errorf("jwt: marshal header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("jwt: marshal claims: %w", err)
	}

	payload := encodeSegment(headerJSON) + "." + encodeSegment(claimsJSON)
	return payload + "." + s.sign(payload), nil
}

// Parse verifies the token signature, algorithm, and temporal claims, and
// returns the decoded claims.
func (s *Service) Parse(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}

	payload := parts[0] + "." + parts[1]
	expected := s.sign(payload)
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(expected)) != 1 {
		return Claims{}, ErrInvalidSignature
	}

	headerJSON, err := decodeSegment(parts[0])
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	var h header
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	if h.Algorithm != headerAlg {
		return Claims{}, ErrUnexpectedAlg
	}

	claimsJSON, err := decodeSegment(parts[1])
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	if err := claims.Valid(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (s *Service) sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return encodeSegment(mac.Sum(nil))
}

func encodeSegment(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
