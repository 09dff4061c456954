package jwtx

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnsupportedKey = errors.New("jwtx: unsupported key")

// JWK is the subset of RFC 7517 partners use to publish B2B verification
// keys: RSA and Ed25519 (OKP).
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`

	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
}

// ParsePublicKey accepts a PEM encoded public key (PKIX or PKCS1) or a
// single JWK and returns an *rsa.PublicKey or ed25519.PublicKey.
func ParsePublicKey(material []byte) (crypto.PublicKey, error) {
	material = bytes.TrimSpace(material)
	if len(material) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedKey)
	}

	if material[0] == '{' {
		var j JWK
		if err := json.Unmarshal(material, &j); err != nil {
			return nil, fmt.Errorf("jwtx: decode jwk: %w", err)
		}
		return j.PublicKey()
	}

	block, _ := pem.Decode(material)
	if block == nil {
		return nil, fmt.Errorf("%w: not PEM or JWK", ErrUnsupportedKey)
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKIX: %w", err)
		}
		switch k := pub.(type) {
		case *rsa.PublicKey, ed25519.PublicKey:
			return k, nil
		}
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	default:
		return nil, fmt.Errorf("%w: PEM type %q", ErrUnsupportedKey, block.Type)
	}
}

// PublicKey converts the JWK into a crypto key.
func (j JWK) PublicKey() (crypto.PublicKey, error) {
	switch j.Kty {
	case "RSA":
		nb, err := base64.RawURLEncoding.DecodeString(j.N)
		if err != nil {
			return nil, fmt.Errorf("jwtx: jwk n: %w", err)
		}
		eb, err := base64.RawURLEncoding.DecodeString(j.E)
		if err != nil {
			return nil, fmt.Errorf("jwtx: jwk e: %w", err)
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(nb),
			E: int(new(big.Int).SetBytes(eb).Int64()),
		}, nil

	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, fmt.Errorf("%w: curve %q", ErrUnsupportedKey, j.Crv)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, fmt.Errorf("jwtx: jwk x: %w", err)
		}
		if len(xb) != ed25519.PublicKeySize {
			return nil, errors.New("jwtx: invalid Ed25519 public key size")
		}
		return ed25519.PublicKey(xb), nil

	default:
		return nil, fmt.Errorf("%w: kty %q", ErrUnsupportedKey, j.Kty)
	}
}

// NewJWK builds a JWK for a B2B verification key, with the matching alg.
func NewJWK(kid string, pub crypto.PublicKey) (JWK, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return JWK{
			Kty: "RSA",
			Kid: kid,
			Alg: jwt.SigningMethodRS512.Alg(),
			N:   base64.RawURLEncoding.EncodeToString(k.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.E)).Bytes()),
		}, nil
	case ed25519.PublicKey:
		return JWK{
			Kty: "OKP",
			Kid: kid,
			Alg: jwt.SigningMethodEdDSA.Alg(),
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(k),
		}, nil
	}
	return JWK{}, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
}
