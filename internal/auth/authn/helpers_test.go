package authn_test

import (
	"context"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/authn"
	"github.com/aussiebroadwan/walletauth/internal/auth/keys"
	"github.com/aussiebroadwan/walletauth/pkg/cryptox"
	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	accessKid    = "k1"
	partnerKid   = "partner-ed"
	partnerRSA   = "partner-rsa"
	boundChannel = "com.bink.wallet"
)

var accessSecret = []byte("0123456789abcdef0123456789abcdef")

type fixture struct {
	resolver *keys.Static
	edKey    crypto.PrivateKey
	rsaKey   crypto.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	r := keys.NewStatic(keys.Secret{Kid: accessKid, Secret: accessSecret})

	ed, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	rs, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	f := &fixture{resolver: r}
	f.edKey = registerB2B(t, r, partnerKid, ed)
	f.rsaKey = registerB2B(t, r, partnerRSA, rs)
	return f
}

func registerB2B(t *testing.T, r *keys.Static, kid string, pair cryptox.KeyPair) crypto.PrivateKey {
	t.Helper()

	pub, err := jwtx.ParsePublicKey(pair.Public)
	require.NoError(t, err)
	priv, err := cryptox.ParsePrivateKey(pair.Private)
	require.NoError(t, err)

	r.AddB2BKey(keys.B2BKey{Kid: kid, Key: pub, Channel: boundChannel})
	return priv
}

func (f *fixture) accessToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwtx.Sign(jwt.SigningMethodHS512, accessKid, accessSecret, claims)
	require.NoError(t, err)
	return tok
}

func (f *fixture) b2bToken(t *testing.T, method jwt.SigningMethod, kid string, key crypto.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwtx.Sign(method, kid, key, claims)
	require.NoError(t, err)
	return tok
}

func liveClaims(sub string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(time.Minute).Unix(),
	}
}

func body(t *testing.T, fields map[string]any) map[string]json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func basic(user, pass string) string {
	return "basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func requireAuthKind(t *testing.T, err error, kind authn.AuthErrorKind) {
	t.Helper()
	var ae *authn.AuthError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, kind, ae.Kind, ae.Error())
}

func requireOAuthKind(t *testing.T, err error, kind authn.OAuthErrorKind) {
	t.Helper()
	var oe *authn.OAuthError
	require.ErrorAs(t, err, &oe)
	require.Equal(t, kind, oe.Kind, oe.Error())
}

// fakeSecrets accepts exactly one (bundle, secret) pair and counts lookups.
type fakeSecrets struct {
	bundle, secret string
	calls          atomic.Int32
	err            error
}

func (f *fakeSecrets) ValidateClientSecret(_ context.Context, bundleID, secret string) (bool, error) {
	f.calls.Add(1)
	if f.err != nil {
		return false, f.err
	}
	return bundleID == f.bundle && secret == f.secret, nil
}

// brokenResolver fails every lookup with a backend error.
type brokenResolver struct{}

var errVault = errors.New("vault unavailable")

func (brokenResolver) AccessSecret(context.Context, string) (keys.Secret, error) {
	return keys.Secret{}, errVault
}
func (brokenResolver) CurrentSecret(context.Context) (keys.Secret, error) {
	return keys.Secret{}, errVault
}
func (brokenResolver) B2BKey(context.Context, string) (keys.B2BKey, error) {
	return keys.B2BKey{}, errVault
}
