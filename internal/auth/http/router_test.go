package http

import (
	"context"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/authn"
	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
	"github.com/aussiebroadwan/walletauth/internal/auth/events"
	"github.com/aussiebroadwan/walletauth/internal/auth/keys"
	"github.com/aussiebroadwan/walletauth/internal/auth/metrics"
	"github.com/aussiebroadwan/walletauth/internal/auth/service"
	"github.com/aussiebroadwan/walletauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/walletauth/pkg/authsdk"
	"github.com/aussiebroadwan/walletauth/pkg/cryptox"
	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testBundle   = "bundle.id"
	trustedBnd   = "trusted.bundle"
	testClientID = "client-1"
	testSecret   = "s3cret"
	testPepper   = "pepper"
	partnerKid   = "partner-1"
)

var accessSecret = []byte("0123456789abcdef0123456789abcdef")

type harness struct {
	router   *Router
	store    *sqlite.Store
	keys     *keys.Static
	recorder *events.Recorder
	partner  crypto.PrivateKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	hash, err := cryptox.HashSecret(testSecret, testPepper)
	require.NoError(t, err)
	require.NoError(t, st.Channels().CreateClientApplication(ctx, domain.ClientApplication{
		ClientID:   testClientID,
		Name:       "Bink",
		SecretHash: hash,
		CreatedAt:  time.Now(),
	}))
	for _, ch := range []domain.Channel{
		{BundleID: testBundle, ClientID: testClientID, AccessTokenLifetimeMinutes: 10, RefreshTokenLifetimeMinutes: 15},
		{BundleID: trustedBnd, ClientID: testClientID, IsTrusted: true},
	} {
		ch.CreatedAt = time.Now()
		require.NoError(t, st.Channels().CreateChannel(ctx, ch))
	}

	kr := keys.NewStatic(keys.Secret{Kid: "k1", Secret: accessSecret})
	pair, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	pub, err := jwtx.ParsePublicKey(pair.Public)
	require.NoError(t, err)
	priv, err := cryptox.ParsePrivateKey(pair.Private)
	require.NoError(t, err)
	kr.AddB2BKey(keys.B2BKey{Kid: partnerKid, Key: pub, Channel: testBundle})

	rec := &events.Recorder{}
	disp := events.NewDispatcher(rec, time.Second)
	t.Cleanup(func() { _ = disp.Close() })

	m := metrics.New()
	r := NewRouter(st, kr, m, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.TokenService = &service.TokenService{Store: st, Keys: kr, Events: disp, Metrics: m}
	r.UserService = &service.UserService{Store: st}
	r.Secrets = &authn.StoreSecretChecker{Channels: st.Channels(), Pepper: testPepper}
	r.ApplyRoutes()

	return &harness{router: r, store: st, keys: kr, recorder: rec, partner: priv}
}

func (h *harness) do(t *testing.T, method, path, authorization, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func (h *harness) partnerToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwtx.Sign(jwt.SigningMethodEdDSA, partnerKid, h.partner, claims)
	require.NoError(t, err)
	return "bearer " + tok
}

func basic(user, pass string) string {
	return "basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func requireTokenError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rr.Code, rr.Body.String())
	require.Equal(t, code, decode[authsdk.ErrorResponse](t, rr).Error)
}

func TestClientCredentialsGrant(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/v2/token", basic(testBundle, testSecret),
		`{"grant_type":"client_credentials","scope":["user"],"username":"alice"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	resp := decode[authsdk.TokenResponse](t, rr)
	require.Equal(t, "bearer", resp.TokenType)
	require.Equal(t, 600, resp.ExpiresIn)
	require.Equal(t, []string{"user"}, resp.Scope)
	require.NotEmpty(t, resp.RefreshToken)

	rows, err := h.store.Users().FindActiveByExternalID(context.Background(), "alice", testBundle)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	me := h.do(t, http.MethodGet, "/v2/me", "bearer "+resp.AccessToken, "")
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())
	got := decode[authsdk.MeResponse](t, me)
	require.Equal(t, rows[0].User.ID, got.UserID)
	require.Equal(t, testBundle, got.Channel)
	require.False(t, got.IsTrustedChannel)
}

func TestB2BGrantThenRefresh(t *testing.T) {
	h := newHarness(t)

	claims := jwt.MapClaims{
		"sub":   "partner-user-1",
		"email": "bob@example.com",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Minute).Unix(),
	}
	rr := h.do(t, http.MethodPost, "/v2/token", h.partnerToken(t, claims),
		`{"grant_type":"b2b","scope":["user"]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[authsdk.TokenResponse](t, rr)

	rr = h.do(t, http.MethodPost, "/v2/token", "bearer "+first.RefreshToken,
		`{"grant_type":"refresh_token","scope":["user"]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	second := decode[authsdk.TokenResponse](t, rr)

	me := h.do(t, http.MethodGet, "/v2/me", "bearer "+second.AccessToken, "")
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())
	require.Equal(t, "bob@example.com", decode[authsdk.MeResponse](t, me).Email)
}

func TestWalletTokenNestedBody(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/v2/wallet_token", basic(testBundle, testSecret),
		`{"token":{"grant_type":"client_credentials","scope":["user"],"username":"carol"}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// A flat body on the wallet route is still accepted.
	rr = h.do(t, http.MethodPost, "/v2/wallet_token", basic(testBundle, testSecret),
		`{"grant_type":"client_credentials","scope":["user"],"username":"carol"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestTokenErrors(t *testing.T) {
	h := newHarness(t)

	t.Run("wrong secret", func(t *testing.T) {
		rr := h.do(t, http.MethodPost, "/v2/token", basic(testBundle, "nope"),
			`{"grant_type":"client_credentials","scope":["user"],"username":"alice"}`)
		requireTokenError(t, rr, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
	})

	t.Run("bad scope", func(t *testing.T) {
		rr := h.do(t, http.MethodPost, "/v2/token", basic(testBundle, testSecret),
			`{"grant_type":"client_credentials","scope":["admin"],"username":"alice"}`)
		requireTokenError(t, rr, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
	})

	t.Run("unknown grant", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "x", "iat": time.Now().Unix(), "exp": time.Now().Add(time.Minute).Unix()}
		rr := h.do(t, http.MethodPost, "/v2/token", h.partnerToken(t, claims),
			`{"grant_type":"password","scope":["user"]}`)
		requireTokenError(t, rr, http.StatusBadRequest, authsdk.ErrorCodeUnsupportedGrantType)
	})

	t.Run("expired partner token", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "x", "iat": time.Now().Add(-time.Hour).Unix(), "exp": time.Now().Add(-time.Minute).Unix()}
		rr := h.do(t, http.MethodPost, "/v2/token", h.partnerToken(t, claims),
			`{"grant_type":"b2b","scope":["user"]}`)
		requireTokenError(t, rr, http.StatusBadRequest, authsdk.ErrorCodeInvalidGrant)
	})

	t.Run("missing header", func(t *testing.T) {
		rr := h.do(t, http.MethodPost, "/v2/token", "",
			`{"grant_type":"b2b","scope":["user"]}`)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed basic payload", func(t *testing.T) {
		hdr := "basic " + base64.StdEncoding.EncodeToString([]byte(testBundle+":a:b"))
		rr := h.do(t, http.MethodPost, "/v2/token", hdr,
			`{"grant_type":"client_credentials","scope":["user"],"username":"alice"}`)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		require.Equal(t, "INVALID_TOKEN", body["error_slug"])
	})
}

func TestMeErrors(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/v2/me", "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	expired, err := jwtx.Sign(jwt.SigningMethodHS512, "k1", accessSecret, jwt.MapClaims{
		"sub":                "u",
		"channel":            testBundle,
		"is_tester":          false,
		"is_trusted_channel": false,
		"iat":                time.Now().Add(-time.Hour).Unix(),
		"exp":                time.Now().Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)
	rr = h.do(t, http.MethodGet, "/v2/me", "bearer "+expired, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, authsdk.SlugExpiredToken, decode[authsdk.ResourceError](t, rr).Slug)
}

func TestUpdateEmailRequiresTrustedChannel(t *testing.T) {
	h := newHarness(t)

	issue := func(bundle, username string) string {
		rr := h.do(t, http.MethodPost, "/v2/token", basic(bundle, testSecret),
			`{"grant_type":"client_credentials","scope":["user"],"username":"`+username+`"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		return decode[authsdk.TokenResponse](t, rr).AccessToken
	}

	untrusted := issue(testBundle, "dave")
	rr := h.do(t, http.MethodPut, "/v2/me/email", "bearer "+untrusted, `{"email":"dave@example.com"}`)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, authsdk.SlugForbidden, decode[authsdk.ResourceError](t, rr).Slug)

	trustedTok := issue(trustedBnd, "erin")
	rr = h.do(t, http.MethodPut, "/v2/me/email", "bearer "+trustedTok, `{"email":"erin@example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode[authsdk.MeResponse](t, rr)
	require.Equal(t, "erin@example.com", got.Email)
	require.True(t, got.IsTrustedChannel)

	rr = h.do(t, http.MethodPut, "/v2/me/email", "bearer "+trustedTok, `{"email":"not-an-email"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = h.do(t, http.MethodPut, "/v2/me/email", "bearer "+trustedTok, `{`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/livez", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	live := decode[authsdk.HealthResponse](t, rr)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, ServiceName, live.Service)
	_, err := time.Parse(time.RFC3339, live.StartedAt)
	require.NoError(t, err)
	require.Nil(t, live.Checks)

	rr = h.do(t, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	ready := decode[authsdk.HealthResponse](t, rr)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Keys)

	require.NoError(t, h.store.Close())
	rr = h.do(t, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "degraded", decode[authsdk.HealthResponse](t, rr).Status)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)

	_ = h.do(t, http.MethodPost, "/v2/token", basic(testBundle, "wrong"),
		`{"grant_type":"client_credentials","scope":["user"],"username":"alice"}`)

	rr := h.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "walletauth_")
}
