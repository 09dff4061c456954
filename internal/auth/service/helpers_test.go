package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
	"github.com/aussiebroadwan/walletauth/internal/auth/events"
	"github.com/aussiebroadwan/walletauth/internal/auth/keys"
	"github.com/aussiebroadwan/walletauth/internal/auth/store"
	"github.com/aussiebroadwan/walletauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/walletauth/pkg/idx"
	"github.com/stretchr/testify/require"
)

const (
	testKid      = "k1"
	testBundle   = "com.bink.wallet"
	testClientID = "bink-client"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type env struct {
	store    *sqlite.Store
	keys     *keys.Static
	recorder *events.Recorder
	events   *events.Dispatcher
	metrics  *countingRecorder
	svc      *TokenService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	rec := &events.Recorder{}
	e := &env{
		store:    st,
		keys:     keys.NewStatic(keys.Secret{Kid: testKid, Secret: testSecret}),
		recorder: rec,
		events:   events.NewDispatcher(rec, time.Second),
		metrics:  &countingRecorder{},
	}
	e.svc = &TokenService{
		Store:   st,
		Keys:    e.keys,
		Events:  e.events,
		Metrics: e.metrics,
	}
	return e
}

// drain waits for every fired event to reach the recorder.
func (e *env) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, e.events.Close())
}

type channelOpt func(*domain.Channel)

func emailRequired(c *domain.Channel) { c.EmailRequired = true }
func trusted(c *domain.Channel)       { c.IsTrusted = true }

func (e *env) seedChannel(t *testing.T, bundle string, opts ...channelOpt) domain.Channel {
	t.Helper()
	ctx := context.Background()

	if _, err := e.store.Channels().GetClientApplication(ctx, testClientID); err != nil {
		require.ErrorIs(t, err, store.ErrNotFound)
		require.NoError(t, e.store.Channels().CreateClientApplication(ctx, domain.ClientApplication{
			ClientID:   testClientID,
			Name:       "Bink",
			SecretHash: "unused",
			CreatedAt:  time.Now(),
		}))
	}

	ch := domain.Channel{
		BundleID:                    bundle,
		ClientID:                    testClientID,
		AccessTokenLifetimeMinutes:  10,
		RefreshTokenLifetimeMinutes: 15,
		CreatedAt:                   time.Now(),
	}
	for _, opt := range opts {
		opt(&ch)
	}
	require.NoError(t, e.store.Channels().CreateChannel(ctx, ch))
	return ch
}

func (e *env) seedUser(t *testing.T, externalID, email string, active bool) domain.User {
	t.Helper()
	u := domain.User{
		ID:         idx.New().String(),
		ExternalID: externalID,
		ClientID:   testClientID,
		Email:      email,
		IsActive:   active,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), u))
	return u
}

type countingRecorder struct {
	mu      sync.Mutex
	issued  map[string]int
	created int
	raced   int
}

func (r *countingRecorder) TokenIssued(grantType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.issued == nil {
		r.issued = map[string]int{}
	}
	r.issued[grantType]++
}

func (r *countingRecorder) UserProvisioned(raced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if raced {
		r.raced++
	} else {
		r.created++
	}
}

// barrierStore holds every FindActiveByExternalID caller until n of them
// have seen "no user", so they all race for the insert.
type barrierStore struct {
	store.Store
	wg *sync.WaitGroup
}

func (s *barrierStore) Users() store.Users {
	return &barrierUsers{Users: s.Store.Users(), wg: s.wg}
}

type barrierUsers struct {
	store.Users
	wg *sync.WaitGroup
}

func (u *barrierUsers) FindActiveByExternalID(ctx context.Context, externalID, bundleID string) ([]domain.UserChannel, error) {
	rows, err := u.Users.FindActiveByExternalID(ctx, externalID, bundleID)
	u.wg.Done()
	u.wg.Wait()
	return rows, err
}

// duplicateStore reports every active lookup twice, as if the identity had
// been provisioned on two rows.
type duplicateStore struct {
	store.Store
}

func (s *duplicateStore) Users() store.Users {
	return &duplicateUsers{Users: s.Store.Users()}
}

type duplicateUsers struct {
	store.Users
}

func (u *duplicateUsers) FindActiveByExternalID(ctx context.Context, externalID, bundleID string) ([]domain.UserChannel, error) {
	rows, err := u.Users.FindActiveByExternalID(ctx, externalID, bundleID)
	return append(rows, rows...), err
}

type noSecret struct{}

func (noSecret) AccessSecret(context.Context, string) (keys.Secret, error) {
	return keys.Secret{}, keys.ErrNoKey
}
func (noSecret) CurrentSecret(context.Context) (keys.Secret, error) {
	return keys.Secret{}, keys.ErrNoCurrent
}
func (noSecret) B2BKey(context.Context, string) (keys.B2BKey, error) {
	return keys.B2BKey{}, keys.ErrNoKey
}

type staticSecret struct {
	bundle, secret string
}

func (s staticSecret) ValidateClientSecret(_ context.Context, bundleID, secret string) (bool, error) {
	return bundleID == s.bundle && secret == s.secret, nil
}

func basicAuth(user, pass string) string {
	return "basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func jsonBody(t *testing.T, raw string) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}
