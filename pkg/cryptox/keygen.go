package cryptox

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// KeyPair is a PEM encoded private key (PKCS8) and public key (PKIX).
type KeyPair struct {
	Private []byte
	Public  []byte
}

// GenerateEd25519Key creates a keypair for EdDSA partner tokens.
func GenerateEd25519Key() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("cryptox: generate Ed25519 key: %w", err)
	}
	return encodePair(priv, pub)
}

// GenerateRSAKey creates a keypair for RS512 partner tokens.
func GenerateRSAKey(bits int) (KeyPair, error) {
	if bits < 2048 {
		return KeyPair{}, fmt.Errorf("cryptox: RSA key size must be at least 2048 bits")
	}

	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("cryptox: generate RSA key: %w", err)
	}
	return encodePair(priv, &priv.PublicKey)
}

func encodePair(priv crypto.PrivateKey, pub crypto.PublicKey) (KeyPair, error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return KeyPair{}, fmt.Errorf("cryptox: marshal PKCS8: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return KeyPair{}, fmt.Errorf("cryptox: marshal PKIX: %w", err)
	}

	return KeyPair{
		Private: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}),
		Public:  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
	}, nil
}

// ParsePrivateKey decodes a PKCS8 PEM private key, as written by the
// generators above.
func ParsePrivateKey(pemKey []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("cryptox: expected PKCS8 PRIVATE KEY PEM")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptox: parse PKCS8: %w", err)
	}
	return key, nil
}
