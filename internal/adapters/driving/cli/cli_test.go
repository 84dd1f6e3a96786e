package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configfile "github.com/stashdrop-labs/stashdrop/internal/adapters/driven/config/file"
	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

// useTempVault points the CLI at a throwaway vault with embeddings off,
// so tests never reach for a local model server.
func useTempVault(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "vault")
	prev := vaultDirFlag
	vaultDirFlag = dir
	t.Cleanup(func() { vaultDirFlag = prev })

	cfg, err := configfile.NewConfigStore(filepath.Dir(dir))
	require.NoError(t, err)
	require.NoError(t, cfg.Set(configfile.KeyEmbedProvider, "none"))

	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Flag values persist on the shared command tree between executions.
	addFile, addLink = "", ""
	listKind, listCategory, listJSON = "", "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	rootCmd.SetArgs(nil)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "stashdrop")
}

func TestAddListRmRoundTrip(t *testing.T) {
	useTempVault(t)

	out, err := execute(t, "add", "remember", "the", "milk")
	require.NoError(t, err)
	assert.Contains(t, out, "saved text")

	out, err = execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "remember the milk")

	// Extract the id from a JSON listing and delete it.
	out, err = execute(t, "list", "--json")
	require.NoError(t, err)

	var items []struct {
		ID string `json:"ID"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)

	out, err = execute(t, "rm", items[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	out, err = execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "The vault is empty.")
}

func TestAddLink(t *testing.T) {
	useTempVault(t)

	out, err := execute(t, "add", "--link", "https://example.com/docs")
	require.NoError(t, err)
	assert.Contains(t, out, "saved link")
}

func TestAddRejectedFile(t *testing.T) {
	useTempVault(t)

	_, err := execute(t, "add", "--file", "/tmp/nope.mp3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFileRejected))
}

func TestAddNothing(t *testing.T) {
	useTempVault(t)

	_, err := execute(t, "add")
	require.Error(t, err)
}

func TestStatusEmptyVault(t *testing.T) {
	useTempVault(t)

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "items:       0")
}

func TestVaultLock(t *testing.T) {
	useTempVault(t)

	first, err := openApp(false)
	require.NoError(t, err)
	defer first.close()

	_, err = openApp(false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVaultLocked))
}
