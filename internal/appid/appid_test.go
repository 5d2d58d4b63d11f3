package appid

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()

	// gofulmen caches identity per process.
	appidentity.Reset()
	t.Cleanup(func() { appidentity.Reset() })

	oldWD, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
	require.NoError(t, os.Chdir(t.TempDir()))
}

func TestGetFallsBackToBuiltInIdentity(t *testing.T) {
	isolate(t)
	t.Setenv(appidentity.EnvIdentityPath, "")

	identity, err := Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BinaryName, identity.BinaryName)
	assert.Equal(t, EnvPrefix, identity.EnvPrefix)
	assert.Equal(t, ConfigName, identity.ConfigName)
}

func TestGetExplicitPathIsAuthoritative(t *testing.T) {
	isolate(t)
	t.Setenv(appidentity.EnvIdentityPath, filepath.Join(t.TempDir(), "missing-app.yaml"))

	_, err := Get(context.Background())
	require.Error(t, err)
}
