package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChannelLifetimes(t *testing.T) {
	t.Parallel()

	c := Channel{}
	require.Equal(t, 600*time.Second, c.AccessTokenLifetime(600*time.Second))
	require.Equal(t, 900*time.Second, c.RefreshTokenLifetime(900*time.Second))

	c = Channel{AccessTokenLifetimeMinutes: 5, RefreshTokenLifetimeMinutes: 60}
	require.Equal(t, 5*time.Minute, c.AccessTokenLifetime(time.Second))
	require.Equal(t, time.Hour, c.RefreshTokenLifetime(time.Second))
}
