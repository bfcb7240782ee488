package builder

import (
	"testing"

	"github.com/cuemby/hoist/pkg/storage"
	"github.com/cuemby/hoist/pkg/types"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestContext() *types.Context {
	c := types.NewContext(nil)
	c.DataDir = "./hoistdata"
	c.Install.Domain = "vault.example.com"
	c.Install.InstallationId = "6b1f4e2a-9c3d-4e5f-8a7b-1c2d3e4f5a6b"
	c.Install.InstallationKey = "key"
	return c
}

func readFile(t *testing.T, fs billy.Filesystem, name string) string {
	t.Helper()
	data, err := util.ReadFile(fs, name)
	require.NoError(t, err)
	return string(data)
}

func exists(fs billy.Filesystem, name string) bool {
	_, err := fs.Stat(name)
	return err == nil
}

func TestWriteArtifactRecordsDigest(t *testing.T) {
	fs := memfs.New()
	ledger := newTestLedger(t)
	w := NewWriter(fs, ledger)

	require.NoError(t, w.WriteArtifact("test", "a/b.txt", []byte("one"), 0644))
	assert.Equal(t, "one", readFile(t, fs, "a/b.txt"))

	record, err := ledger.GetArtifact("a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, Digest([]byte("one")), record.Digest)
	assert.Equal(t, "test", record.Builder)
}

func TestWriteArtifactBacksUpHandEdits(t *testing.T) {
	fs := memfs.New()
	w := NewWriter(fs, newTestLedger(t))

	require.NoError(t, w.WriteArtifact("test", "f.conf", []byte("generated"), 0644))
	require.NoError(t, util.WriteFile(fs, "f.conf", []byte("edited"), 0644))

	require.NoError(t, w.WriteArtifact("test", "f.conf", []byte("generated"), 0644))
	assert.Equal(t, "generated", readFile(t, fs, "f.conf"))
	assert.Equal(t, "edited", readFile(t, fs, "f.conf"+BackupSuffix))
}

func TestWriteArtifactNoBackupWhenUnchanged(t *testing.T) {
	fs := memfs.New()
	w := NewWriter(fs, newTestLedger(t))

	require.NoError(t, w.WriteArtifact("test", "f.conf", []byte("v1"), 0644))
	require.NoError(t, w.WriteArtifact("test", "f.conf", []byte("v1"), 0644))
	require.NoError(t, w.WriteArtifact("test", "f.conf", []byte("v2"), 0644))

	assert.Equal(t, "v2", readFile(t, fs, "f.conf"))
	assert.False(t, exists(fs, "f.conf"+BackupSuffix))
}

func TestWriteArtifactWithoutLedger(t *testing.T) {
	fs := memfs.New()
	w := NewWriter(fs, nil)

	require.NoError(t, util.WriteFile(fs, "f.conf", []byte("edited"), 0644))
	require.NoError(t, w.WriteArtifact("test", "f.conf", []byte("generated"), 0644))

	assert.Equal(t, "generated", readFile(t, fs, "f.conf"))
	assert.False(t, exists(fs, "f.conf"+BackupSuffix))
}

func TestWriteUserFile(t *testing.T) {
	fs := memfs.New()
	ledger := newTestLedger(t)
	w := NewWriter(fs, ledger)

	require.NoError(t, w.WriteUserFile("env/x.env", []byte("A=1\n"), 0600))
	assert.Equal(t, "A=1\n", readFile(t, fs, "env/x.env"))

	list, err := ledger.ListArtifacts()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReadFileMissing(t *testing.T) {
	w := NewWriter(memfs.New(), nil)
	data, ok, err := w.ReadFile("missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestDrifted(t *testing.T) {
	fs := memfs.New()
	w := NewWriter(fs, newTestLedger(t))

	require.NoError(t, w.WriteArtifact("test", "a.conf", []byte("a"), 0644))
	require.NoError(t, w.WriteArtifact("test", "b.conf", []byte("b"), 0644))
	require.NoError(t, w.WriteArtifact("test", "c.conf", []byte("c"), 0644))

	drifted, err := w.Drifted()
	require.NoError(t, err)
	assert.Empty(t, drifted)

	require.NoError(t, util.WriteFile(fs, "a.conf", []byte("edited"), 0644))
	require.NoError(t, fs.Remove("c.conf"))

	drifted, err = w.Drifted()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.conf", "c.conf"}, drifted)
}

func TestDriftedWithoutLedger(t *testing.T) {
	drifted, err := NewWriter(memfs.New(), nil).Drifted()
	require.NoError(t, err)
	assert.Nil(t, drifted)
}
