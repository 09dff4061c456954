package auth_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	env := setupAuthService(t)
	ctx := context.Background()
	c := env.client()

	live, err := c.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.NotEmpty(t, live.Version)

	ready, err := c.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Keys)
}

func TestMetricsAndDocs(t *testing.T) {
	t.Parallel()
	env := setupAuthService(t)

	_, err := env.client().ClientCredentials(context.Background(), walletBundle, clientSecret, "metrics-user")
	require.NoError(t, err)

	resp, err := http.Get(env.baseURL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `walletauth_tokens_issued_total{grant_type="client_credentials"} 1`)

	resp, err = http.Get(env.baseURL + "/swagger/doc.json")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(body), "/v2/token"))
}

func TestKeyRotationReload(t *testing.T) {
	t.Parallel()
	env := setupAuthService(t)
	ctx := context.Background()
	c := env.client()

	before, err := c.ClientCredentials(ctx, walletBundle, clientSecret, "rotator")
	require.NoError(t, err)
	require.Equal(t, "k1", accessKid(t, before.AccessToken))

	// Rotate: k2 signs, k1 still verifies
	env.writeSecrets(t, "k2", "k1", "k2")

	require.Eventually(t, func() bool {
		pair, err := c.ClientCredentials(ctx, walletBundle, clientSecret, "rotator")
		if err != nil {
			return false
		}
		h, err := jwtx.ParseHeader(pair.AccessToken)
		return err == nil && h.Kid == "k2"
	}, 5*time.Second, 200*time.Millisecond)

	_, err = c.Me(ctx, before.AccessToken)
	require.NoError(t, err)
	_, err = c.Refresh(ctx, before.RefreshToken)
	require.NoError(t, err)
}
