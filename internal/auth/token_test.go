package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndParseIdentity(t *testing.T) {
	token, err := IssueDevToken("dev-secret", "driver-17", RoleDriver, time.Hour)
	require.NoError(t, err)

	id, err := ParseIdentity(token)
	require.NoError(t, err)
	require.Equal(t, "driver-17", id.UserID)
	require.Equal(t, RoleDriver, id.Role)
}

func TestParseIdentityBearerPrefix(t *testing.T) {
	token, err := IssueDevToken("dev-secret", "p-1", RolePassenger, time.Hour)
	require.NoError(t, err)

	id, err := ParseIdentity("Bearer " + token)
	require.NoError(t, err)
	require.Equal(t, "p-1", id.UserID)
}

func TestParseIdentityEmpty(t *testing.T) {
	_, err := ParseIdentity("   ")
	require.ErrorIs(t, err, ErrEmptyToken)
}

func TestLoadIdentityFromFile(t *testing.T) {
	token, err := IssueDevToken("dev-secret", "p-9", RolePassenger, time.Hour)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(token+"\n"), 0o600))

	id, err := LoadIdentity(path)
	require.NoError(t, err)
	require.Equal(t, "p-9", id.UserID)
}

func TestRoleCounterpart(t *testing.T) {
	require.Equal(t, RolePassenger, RoleDriver.Counterpart())
	require.Equal(t, RoleDriver, RolePassenger.Counterpart())
}

func TestRoleIDField(t *testing.T) {
	require.Equal(t, "driver_id", RoleDriver.IDField())
	require.Equal(t, "passenger_id", RolePassenger.IDField())
}
