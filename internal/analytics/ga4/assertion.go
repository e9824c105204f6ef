package ga4

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gerr "github.com/jekabolt/grbpwr-analytics/internal/errors"
)

const (
	// ReadonlyScope is the analytics reporting read scope.
	ReadonlyScope = "https://www.googleapis.com/auth/analytics.readonly"
	// AssertionLifetime is fixed by the JWT-bearer grant.
	AssertionLifetime = time.Hour
)

// Assertion is a signed JWT assertion split into its encoded segments.
type Assertion struct {
	Header    string
	Payload   string
	Signature string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// String returns the compact serialization.
func (a *Assertion) String() string {
	return a.Header + "." + a.Payload + "." + a.Signature
}

// Signer builds a signed assertion for cred.
type Signer interface {
	Sign(cred *Credential, scope, audience string, now time.Time) (*Assertion, error)
}

type assertionHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

type assertionClaims struct {
	Iss   string `json:"iss"`
	Scope string `json:"scope"`
	Aud   string `json:"aud"`
	Iat   int64  `json:"iat"`
	Exp   int64  `json:"exp"`
}

// RS256Signer encodes and signs the assertion by hand.
type RS256Signer struct{}

// Sign implements Signer.
func (RS256Signer) Sign(cred *Credential, scope, audience string, now time.Time) (*Assertion, error) {
	key, err := ParsePrivateKey(cred.PrivateKeyPEM)
	if err != nil {
		return nil, &gerr.SigningError{Err: err}
	}

	iat := now.Unix()
	header, err := encodeSegment(assertionHeader{Alg: "RS256", Typ: "JWT"})
	if err != nil {
		return nil, &gerr.SigningError{Err: err}
	}
	payload, err := encodeSegment(assertionClaims{
		Iss:   cred.PrincipalID,
		Scope: scope,
		Aud:   audience,
		Iat:   iat,
		Exp:   iat + int64(AssertionLifetime/time.Second),
	})
	if err != nil {
		return nil, &gerr.SigningError{Err: err}
	}

	digest := sha256.Sum256([]byte(header + "." + payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, &gerr.SigningError{Err: fmt.Errorf("rsa sign: %w", err)}
	}

	return &Assertion{
		Header:    header,
		Payload:   payload,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
		IssuedAt:  time.Unix(iat, 0),
		ExpiresAt: time.Unix(iat, 0).Add(AssertionLifetime),
	}, nil
}

// JWTSigner produces the same assertion through golang-jwt.
type JWTSigner struct{}

// Sign implements Signer.
func (JWTSigner) Sign(cred *Credential, scope, audience string, now time.Time) (*Assertion, error) {
	key, err := ParsePrivateKey(cred.PrivateKeyPEM)
	if err != nil {
		return nil, &gerr.SigningError{Err: err}
	}

	iat := now.Unix()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   cred.PrincipalID,
		"scope": scope,
		"aud":   audience,
		"iat":   iat,
		"exp":   iat + int64(AssertionLifetime/time.Second),
	})
	signed, err := tok.SignedString(key)
	if err != nil {
		return nil, &gerr.SigningError{Err: err}
	}

	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		return nil, &gerr.SigningError{Err: fmt.Errorf("unexpected jwt with %d segments", len(parts))}
	}
	return &Assertion{
		Header:    parts[0],
		Payload:   parts[1],
		Signature: parts[2],
		IssuedAt:  time.Unix(iat, 0),
		ExpiresAt: time.Unix(iat, 0).Add(AssertionLifetime),
	}, nil
}

// NewSigner returns the signer registered under name. Empty name means RS256Signer.
func NewSigner(name string) (Signer, error) {
	switch name {
	case "", "rs256":
		return RS256Signer{}, nil
	case "jwt":
		return JWTSigner{}, nil
	default:
		return nil, fmt.Errorf("unknown assertion signer %q", name)
	}
}

// ParsePrivateKey decodes a PKCS#8 or PKCS#1 RSA private key from PEM.
func ParsePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("no PEM block found in private key")
	}

	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, want RSA", k)
		}
		return rk, nil
	}

	rk, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("can't parse private key: %w", err)
	}
	return rk, nil
}

func encodeSegment(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
