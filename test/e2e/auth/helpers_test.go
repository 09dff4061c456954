package auth_test

import (
	"context"
	"crypto"
	"encoding/base64"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/app"
	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
	"github.com/aussiebroadwan/walletauth/pkg/authsdk"
	"github.com/aussiebroadwan/walletauth/pkg/cryptox"
	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

/*
 * End-to-end helpers. Each test gets its own fully wired application
 * (SQLite file, YAML secrets file with an encrypted access secret, pepper)
 * served through httptest and driven with the authsdk client.
 */

const (
	clientID      = "bink"
	clientSecret  = "bink-client-secret"
	pepper        = "test-pepper"
	masterKey     = "test-master-key"
	walletBundle  = "com.bink.wallet"
	trustedBundle = "com.bink.trusted"
	strictBundle  = "com.bink.strict"
	partnerKid    = "partner-1"
)

type testEnv struct {
	app         *app.Application
	baseURL     string
	secretsFile string
	sealer      *cryptox.Sealer
	partner     crypto.PrivateKey
	partnerPub  []byte
}

func (e *testEnv) client() *authsdk.SDKClient { return authsdk.NewSDKClient(e.baseURL) }

// setupAuthService starts the service in-process and seeds one client
// application with three channels.
func setupAuthService(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	sealer, err := cryptox.NewSealer([]byte(masterKey))
	require.NoError(t, err)

	pair, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	priv, err := cryptox.ParsePrivateKey(pair.Private)
	require.NoError(t, err)

	env := &testEnv{
		secretsFile: filepath.Join(dir, "secrets.yaml"),
		sealer:      sealer,
		partner:     priv,
		partnerPub:  pair.Public,
	}
	env.writeSecrets(t, "k1", "k1")

	masterFile := filepath.Join(dir, "master.key")
	pepperFile := filepath.Join(dir, "pepper")
	require.NoError(t, os.WriteFile(masterFile, []byte(masterKey+"\n"), 0o600))
	require.NoError(t, os.WriteFile(pepperFile, []byte(pepper+"\n"), 0o600))

	cfg := app.Config{
		DatabaseDriver:       "sqlite",
		DatabaseDSN:          filepath.Join(dir, "auth.db"),
		SecretsFile:          env.secretsFile,
		WatchSecrets:         true,
		MasterKeyFile:        masterFile,
		PepperFile:           pepperFile,
		AccessTTL:            jwtx.DefaultAccessTokenTTL,
		RefreshTTL:           jwtx.DefaultRefreshTokenTTL,
		SecretCacheEntries:   1000,
		SecretCacheTTL:       time.Minute,
		EventPublisher:       "log",
		EventTimeout:         time.Second,
		Env:                  "test",
		LogLevel:             "warn",
		LogFormat:            "json",
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Minute,
	}

	a, err := app.New(cfg)
	require.NoError(t, err)
	env.app = a
	env.seed(t)

	srv := httptest.NewServer(a.Handler())
	env.baseURL = srv.URL
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close()
	})
	return env
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	st := e.app.Store()

	hash, err := cryptox.HashSecret(clientSecret, pepper)
	require.NoError(t, err)
	require.NoError(t, st.Channels().CreateClientApplication(ctx, domain.ClientApplication{
		ClientID:   clientID,
		Name:       "Bink",
		SecretHash: hash,
		CreatedAt:  time.Now(),
	}))

	for _, ch := range []domain.Channel{
		{BundleID: walletBundle, ClientID: clientID, AccessTokenLifetimeMinutes: 10, RefreshTokenLifetimeMinutes: 15},
		{BundleID: trustedBundle, ClientID: clientID, IsTrusted: true},
		{BundleID: strictBundle, ClientID: clientID, EmailRequired: true},
	} {
		ch.CreatedAt = time.Now()
		require.NoError(t, st.Channels().CreateChannel(ctx, ch))
	}
}

// writeSecrets rewrites the secrets file. Every kid in kids gets a sealed
// secret derived from its name; current is the signing kid. The partner key
// is bound to walletBundle and a second kid to strictBundle.
func (e *testEnv) writeSecrets(t *testing.T, current string, kids ...string) {
	t.Helper()

	doc := "access_secrets:\n  current: " + current + "\n  keys:\n"
	for _, kid := range kids {
		sealed, err := e.sealer.Seal([]byte("secret-material-for-" + kid + "-0123456789abcdef"))
		require.NoError(t, err)
		doc += fmt.Sprintf("    - kid: %s\n      secret: %s\n      encrypted: true\n",
			kid, base64.StdEncoding.EncodeToString(sealed))
	}
	doc += "b2b_keys:\n"
	for kid, channel := range map[string]string{partnerKid: walletBundle, "partner-strict": strictBundle} {
		doc += fmt.Sprintf("  - kid: %s\n    channel: %s\n    public_key: |\n", kid, channel)
		for _, line := range strings.Split(strings.TrimRight(string(e.partnerPub), "\n"), "\n") {
			doc += "      " + line + "\n"
		}
	}

	// Write to a temp file and rename so the watcher never sees a partial file.
	tmp := e.secretsFile + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(doc), 0o600))
	require.NoError(t, os.Rename(tmp, e.secretsFile))
}

// partnerToken signs a B2B token as the partner would.
func (e *testEnv) partnerToken(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	now := time.Now()
	if _, ok := claims["iat"]; !ok {
		claims["iat"] = now.Unix()
	}
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = now.Add(time.Minute).Unix()
	}
	tok, err := jwtx.Sign(jwt.SigningMethodEdDSA, kid, e.partner, claims)
	require.NoError(t, err)
	return tok
}

func accessKid(t *testing.T, token string) string {
	t.Helper()
	h, err := jwtx.ParseHeader(token)
	require.NoError(t, err)
	return h.Kid
}

func requireOAuthError(t *testing.T, err error, want *authsdk.OAuth2Error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, want)
	var oe *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, want.StatusCode, oe.StatusCode)
}
