// Package jwt implements HS256 token signing and verification for the API's
// bearer-token auth, without pulling in a full OIDC dependency.
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
)

var (
	ErrMissingSigningKey = errors.New("jwt signing key is required")
	ErrMissingClaims     = errors.New("jwt claims are required")
	ErrInvalidToken      = errors.New("invalid jwt token")
	ErrInvalidSignature  = errors.New("invalid jwt signature")
	ErrUnexpectedAlg     = errors.New("unexpected jwt signing algorithm")
	ErrExpiredToken      = errors.New("jwt token has expired")
)

const algHS256 = "HS256"

type header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// StandardClaims carries the registered claims from RFC 7519 §4.1.
type StandardClaims struct {
	Subject   string `json:"sub,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// Valid checks the temporal claims; zero values are treated as unset.
func (c StandardClaims) Valid() error {
	now := time.Now().Unix()
	if c.ExpiresAt > 0 && now > c.ExpiresAt {
		return ErrExpiredToken
	}
	if c.NotBefore > 0 && now < c.NotBefore {
		return ErrInvalidToken
	}
	return nil
}

// Service signs and verifies tokens with a shared HMAC key.
type Service struct {
	key []byte
}

func New(signingKey string) (*Service, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}
	return &Service{key: []byte(signingKey)}, nil
}

// Generate signs the given claims into a compact JWT string.
func (s *Service) Generate(claims any) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}

	headerJSON, err := json.Marshal(header{Type: "JWT", Algorithm: algHS256})
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	payload := b64(headerJSON) + "." + b64(claimsJSON)
	return payload + "." + s.sign(payload), nil
}

// Parse verifies the signature and temporal claims, then unmarshals the
// claims segment into dst. dst may implement Valid() error for extra checks.
func (s *Service) Parse(token string, dst any) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrInvalidToken
	}

	payload := parts[0] + "." + parts[1]
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(s.sign(payload))) != 1 {
		return ErrInvalidSignature
	}

	headerJSON, err := b64decode(parts[0])
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	var h header
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	// Reject algorithm substitution even though the signature already matched.
	if h.Algorithm != algHS256 {
		return ErrUnexpectedAlg
	}

	claimsJSON, err := b64decode(parts[1])
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	if err := json.Unmarshal(claimsJSON, dst); err != nil {
		return errors.Join(ErrInvalidToken, err)
	}

	if v, ok := dst.(interface{ Valid() error }); ok {
		return v.Valid()
	}
	return nil
}

func (s *Service) sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return b64(mac.Sum(nil))
}

func b64(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func b64decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
