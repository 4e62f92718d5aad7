package tenants

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const clientsYAML = `
clients:
  - tenant_code: OVO000001
    client_id: client-one
    authorization_key: c2VjcmV0LW9uZQ==
  - tenant_code: OVO000002
    client_id: client-two
    key_dir: /keys/two
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadClientsFile_YAML(t *testing.T) {
	t.Parallel()
	clients, err := LoadClientsFile(writeFile(t, "clients.yaml", clientsYAML))
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "OVO000001", clients[0].TenantCode)
	assert.Equal(t, "c2VjcmV0LW9uZQ==", clients[0].AuthorizationKey)
	assert.Equal(t, "/keys/two", clients[1].KeyDir)
}

func TestLoadClientsFile_JSON(t *testing.T) {
	t.Parallel()
	clients, err := LoadClientsFile(writeFile(t, "clients.json", `{"clients":[{"tenant_code":"OVO9","client_id":"c9"}]}`))
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, TenantKey("c9"), clients[0].CacheKey())
}

func TestLoadClientsFile_Invalid(t *testing.T) {
	t.Parallel()
	_, err := LoadClientsFile(writeFile(t, "clients.yaml", "clients:\n  - client_id: orphan\n"))
	assert.Error(t, err)

	_, err = LoadClientsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	clients, err := LoadClientsFile("")
	assert.NoError(t, err)
	assert.Empty(t, clients)
}

func TestDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := zap.NewNop().Sugar()
	prov, err := NewMemoryProviderFromFile(log, writeFile(t, "clients.yaml", clientsYAML))
	require.NoError(t, err)

	dir := NewDirectory(prov, Client{ClientID: "static-client", AuthorizationKey: "static"}, log)

	key, err := dir.KeyFor(ctx, "OVO000001")
	require.NoError(t, err)
	assert.Equal(t, TenantKey("client-one"), key)

	key, err = dir.KeyFor(ctx, "OVO999999")
	require.NoError(t, err)
	assert.Equal(t, TenantKey("static-client"), key, "unknown tenants fall back to the static client")

	c, err := dir.Client(ctx, "client-two")
	require.NoError(t, err)
	assert.Equal(t, "OVO000002", c.TenantCode)

	c, err = dir.Client(ctx, "static-client")
	require.NoError(t, err)
	assert.Equal(t, "static", c.AuthorizationKey)

	_, err = dir.Client(ctx, "nobody")
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestDirectory_DefaultKeyWithoutClientID(t *testing.T) {
	t.Parallel()
	dir := NewDirectory(nil, Client{AuthorizationKey: "static"}, zap.NewNop().Sugar())
	key, err := dir.KeyFor(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultKey, key)
}

func TestSecrets(t *testing.T) {
	t.Parallel()
	sealed, err := sealSecret([]byte("s3cret"), []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, secretEncrypted, sealed[0])

	plain, err := openSecret(sealed, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(plain))

	_, err = openSecret(sealed, []byte("other"))
	assert.Error(t, err)
	_, err = openSecret(sealed, nil)
	assert.Error(t, err)

	unsealed, err := sealSecret([]byte("plain"), nil)
	require.NoError(t, err)
	plain, err = openSecret(unsealed, nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(plain))
}
