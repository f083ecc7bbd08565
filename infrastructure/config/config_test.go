package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempIni(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ini")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := writeTempIni(t, `
[server:main]
port = 9000
admin_user = admin
admin_pass = secret
max_threads = 8

[backend:main]
dsn = postgres://db/nodetree
cp_min = 3
cp_max = 6
`)

	cfg, err := Load(Flags{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "admin", cfg.Server.AdminUser)
	assert.Equal(t, "secret", cfg.Server.AdminPass)
	assert.Equal(t, 8, cfg.Server.MaxThreads)
	assert.Equal(t, "postgres://db/nodetree", cfg.Backend.DSN)
	assert.Equal(t, 3, cfg.Backend.CPMin)
	assert.Equal(t, 6, cfg.Backend.CPMax)
}

func TestLoadFlagOverridesSupersedeFile(t *testing.T) {
	path := writeTempIni(t, `
[server:main]
port = 9000

[backend:main]
dsn = postgres://db/nodetree
`)

	cfg, err := Load(Flags{ConfigPath: path, Port: 1234, Socket: "/tmp/nodetree.sock"})
	require.NoError(t, err)

	assert.Equal(t, 1234, cfg.Server.Port)
	assert.Equal(t, "/tmp/nodetree.sock", cfg.Server.Socket)
}

func TestLoadZeroPoolSizeFailsValidation(t *testing.T) {
	path := writeTempIni(t, `
[backend:main]
dsn = postgres://db/nodetree
cp_min = 0
`)

	_, err := Load(Flags{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid [backend:main] section")
}

func TestLoadFallsBackToDefaultsWhenSectionsMissing(t *testing.T) {
	path := writeTempIni(t, "")

	cfg, err := Load(Flags{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Backend.CPMin)
	assert.Equal(t, 4, cfg.Backend.CPMax)
}
