package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManagerRoundTrip(t *testing.T) {
	m := NewManager("secret", "seats")
	token, err := m.Issue("user-1", time.Minute)
	require.NoError(t, err)

	userID, err := m.FromHeader("Bearer " + token)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
}

func TestManagerRejects(t *testing.T) {
	m := NewManager("secret", "seats")
	expired, err := m.Issue("user-1", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewManager("other", "seats").Issue("user-1", time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := NewManager("secret", "elsewhere").Issue("user-1", time.Minute)
	require.NoError(t, err)
	noSubject, err := m.Issue("", time.Minute)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"empty":        "",
		"no scheme":    expired,
		"basic":        "Basic abc",
		"expired":      "Bearer " + expired,
		"bad key":      "Bearer " + foreign,
		"wrong issuer": "Bearer " + wrongIssuer,
		"no subject":   "Bearer " + noSubject,
		"garbage":      "Bearer not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.FromHeader(header)
			require.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestUserContext(t *testing.T) {
	_, err := UserFrom(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)

	userID, err := UserFrom(WithUser(context.Background(), "u"))
	require.NoError(t, err)
	require.Equal(t, "u", userID)
}
