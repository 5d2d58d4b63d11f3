package dnsbl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iplens/iplens/internal/core"
)

func TestDefaultListsOrder(t *testing.T) {
	lists := DefaultLists()
	require.Len(t, lists, 4)
	assert.Equal(t, core.BlacklistDefinition{Name: "SpamCop", Host: "bl.spamcop.net", Description: "Known spam sources"}, lists[0])
	assert.Equal(t, "dnsbl.sorbs.net", lists[1].Host)
	assert.Equal(t, "b.barracudacentral.org", lists[2].Host)
	assert.Equal(t, "dnsbl-1.uceprotect.net", lists[3].Host)
}

func TestLoadListsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lists.yaml")
	content := `lists:
  - name: Spamhaus ZEN
    host: zen.spamhaus.org.
    description: Combined list
  - name: " Local "
    host: DNSBL.Example.NET
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	lists, err := LoadListsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []core.BlacklistDefinition{
		{Name: "Spamhaus ZEN", Host: "zen.spamhaus.org", Description: "Combined list"},
		{Name: "Local", Host: "dnsbl.example.net"},
	}, lists)
}

func TestLoadListsFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadListsFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("lists: [unclosed"), 0o600))
	_, err = LoadListsFile(bad)
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("lists: []\n"), 0o600))
	_, err = LoadListsFile(empty)
	require.Error(t, err)
}

func TestNormalizeListsRejectsInvalid(t *testing.T) {
	_, err := NormalizeLists([]core.BlacklistDefinition{{Host: "a.example"}})
	require.Error(t, err)

	_, err = NormalizeLists([]core.BlacklistDefinition{{Name: "A"}})
	require.Error(t, err)

	_, err = NormalizeLists([]core.BlacklistDefinition{
		{Name: "A", Host: "a.example"},
		{Name: "B", Host: "A.example."},
	})
	require.Error(t, err)
}
