package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `devices:
  - id: id24A160E1B2C3
    aes: 00112233445566778899aabbccddeeff
    pop: 0123456789abcdef0123456789abcdef
    type: switch
    hw_version: "1.0"
  - id: id24A160E1B2C4
    aes: not-hex
    pop: 0123456789abcdef0123456789abcdef
`

func writeManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o600))
	return path
}

func TestFileRegistryLookup(t *testing.T) {
	r, err := OpenFileRegistry(writeManifest(t))
	require.NoError(t, err)

	d, err := r.LookupDevice(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, testKey(t), d.PSK)
	assert.Equal(t, "switch", d.Type)
	assert.Equal(t, "1.0", d.HardwareVersion)
	assert.False(t, d.Provisioned)

	_, err = r.LookupDevice(context.Background(), "id24A160E1B2C4")
	assert.ErrorIs(t, err, ErrInvalidDevice)

	_, err = r.LookupDevice(context.Background(), "id24A160E1B2C5")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileRegistryMarkProvisionedPersists(t *testing.T) {
	path := writeManifest(t)
	r, err := OpenFileRegistry(path)
	require.NoError(t, err)

	require.NoError(t, r.MarkProvisioned(context.Background(), testID))

	reopened, err := OpenFileRegistry(path)
	require.NoError(t, err)
	d, err := reopened.LookupDevice(context.Background(), testID)
	require.NoError(t, err)
	assert.True(t, d.Provisioned)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileRegistryAdd(t *testing.T) {
	path := writeManifest(t)
	r, err := OpenFileRegistry(path)
	require.NoError(t, err)

	entry := ManifestEntry{ID: "id24A160E1B2C9", AES: testAES, PoP: testPoP}
	require.NoError(t, r.Add(entry))
	assert.ErrorIs(t, r.Add(entry), ErrInvalidDevice)

	reopened, err := OpenFileRegistry(path)
	require.NoError(t, err)
	_, err = reopened.LookupDevice(context.Background(), "id24A160E1B2C9")
	assert.NoError(t, err)
}

func TestOpenFileRegistryErrors(t *testing.T) {
	_, err := OpenFileRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devices: {not: [a list"), 0o600))
	_, err = OpenFileRegistry(path)
	assert.ErrorIs(t, err, ErrInvalidDevice)
}

func TestParseDeployFile(t *testing.T) {
	data := []byte("DEPLOY_ID=id24A160E1B2C3\nDEPLOY_TYPE=switch\nDEPLOY_POP=" + testPoP + "\nDEPLOY_AES=" + testAES + "\n")
	e, err := ParseDeployFile(data)
	require.NoError(t, err)
	assert.Equal(t, ManifestEntry{ID: testID, Type: "switch", PoP: testPoP, AES: testAES}, e)

	_, err = ParseDeployFile([]byte("DEPLOY_ID=id24A160E1B2C3\n"))
	assert.ErrorIs(t, err, ErrInvalidDevice)

	_, err = ParseDeployFile([]byte("garbage\n"))
	assert.ErrorIs(t, err, ErrInvalidDevice)
}
