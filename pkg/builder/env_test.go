package builder

import (
	"context"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseEnv(t *testing.T, content string) map[string]string {
	t.Helper()
	values, err := godotenv.Unmarshal(content)
	require.NoError(t, err)
	return values
}

func TestEnvBuilderInstallGeneratesSecretsOnce(t *testing.T) {
	fs := memfs.New()
	b := NewEnvBuilder(NewWriter(fs, newTestLedger(t)))
	c := newTestContext()
	c.ComputeURL()

	require.NoError(t, b.BuildForInstall(context.Background(), c))
	password := c.Install.DatabasePassword
	require.Len(t, password, databasePasswordLength)
	require.Len(t, c.Install.InternalIdentityKey, identityKeyLength)
	require.NotEmpty(t, c.Install.IdentityCertPassword)

	mssql := parseEnv(t, readFile(t, fs, MssqlOverrideEnvPath))
	assert.Equal(t, password, mssql[SaPasswordKey])

	global := parseEnv(t, readFile(t, fs, GlobalOverrideEnvPath))
	assert.Equal(t, "http://vault.example.com", global["globalSettings__baseServiceUri__vault"])
	assert.Equal(t, "http://vault.example.com/api", global["globalSettings__baseServiceUri__api"])
	assert.Equal(t, c.Install.InstallationId, global["globalSettings__installation__id"])
	assert.Contains(t, global["globalSettings__sqlServer__connectionString"], "Password="+password+";")

	firstGlobal := readFile(t, fs, GlobalOverrideEnvPath)
	firstOwned := readFile(t, fs, GlobalEnvPath)
	require.NoError(t, b.BuildForInstall(context.Background(), c))
	assert.Equal(t, password, c.Install.DatabasePassword)
	assert.Equal(t, firstGlobal, readFile(t, fs, GlobalOverrideEnvPath))
	assert.Equal(t, firstOwned, readFile(t, fs, GlobalEnvPath))
}

func TestEnvBuilderOwnedFilesSorted(t *testing.T) {
	fs := memfs.New()
	b := NewEnvBuilder(NewWriter(fs, nil))
	c := newTestContext()
	require.NoError(t, b.BuildForInstall(context.Background(), c))

	content := readFile(t, fs, GlobalEnvPath)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	var keys []string
	for _, l := range lines {
		keys = append(keys, strings.SplitN(l, "=", 2)[0])
	}
	assert.IsNonDecreasing(t, keys)
	assert.Equal(t, "Y", parseEnv(t, readFile(t, fs, MssqlEnvPath))["ACCEPT_EULA"])
}

func TestEnvBuilderUpdateKeepsOperatorKeys(t *testing.T) {
	fs := memfs.New()
	b := NewEnvBuilder(NewWriter(fs, nil))
	c := newTestContext()
	c.ComputeURL()
	require.NoError(t, b.BuildForInstall(context.Background(), c))

	values := parseEnv(t, readFile(t, fs, GlobalOverrideEnvPath))
	values["adminSettings__admins"] = "admin@example.com"
	values["globalSettings__yubico__key"] = "custom"
	values["globalSettings__baseServiceUri__vault"] = "http://stale"
	content, err := godotenv.Marshal(values)
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fs, GlobalOverrideEnvPath, []byte(content), 0600))

	c.Config.Ssl = true
	c.ComputeURL()
	require.NoError(t, b.BuildForUpdate(context.Background(), c))

	merged := parseEnv(t, readFile(t, fs, GlobalOverrideEnvPath))
	assert.Equal(t, "admin@example.com", merged["adminSettings__admins"])
	assert.Equal(t, "custom", merged["globalSettings__yubico__key"])
	assert.Equal(t, "https://vault.example.com", merged["globalSettings__baseServiceUri__vault"])
}

func TestEnvBuilderUpdateAdoptsExistingSecrets(t *testing.T) {
	fs := memfs.New()
	b := NewEnvBuilder(NewWriter(fs, nil))
	require.NoError(t, util.WriteFile(fs, MssqlOverrideEnvPath, []byte("SA_PASSWORD=\"Existing1Pass\"\n"), 0600))
	require.NoError(t, util.WriteFile(fs, GlobalOverrideEnvPath,
		[]byte("globalSettings__internalIdentityKey=\"oldkey\"\n"), 0600))

	c := newTestContext()
	c.ComputeURL()
	require.NoError(t, b.BuildForUpdate(context.Background(), c))

	assert.Equal(t, "Existing1Pass", c.Install.DatabasePassword)
	assert.Equal(t, "oldkey", c.Install.InternalIdentityKey)
	assert.NotEmpty(t, c.Install.IdentityCertPassword)

	password, err := ReadEnvValue(b.writer, MssqlOverrideEnvPath, SaPasswordKey)
	require.NoError(t, err)
	assert.Equal(t, "Existing1Pass", password)
}

func TestReadEnvValueMissingFile(t *testing.T) {
	_, err := ReadEnvValue(NewWriter(memfs.New(), nil), MssqlOverrideEnvPath, SaPasswordKey)
	assert.Error(t, err)
}

func TestRandomSecret(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		s, err := randomSecret(32)
		require.NoError(t, err)
		assert.Len(t, s, 32)
		assert.True(t, strings.ContainsAny(s, "0123456789"))
		assert.False(t, seen[s])
		seen[s] = true
	}
}

func TestEnvBuilderUpdateKeepsHandEditedLines(t *testing.T) {
	fs := memfs.New()
	b := NewEnvBuilder(NewWriter(fs, newTestLedger(t)))
	c := newTestContext()
	c.ComputeURL()
	c.Install.DatabasePassword = "Pa$SWORD_1"
	require.NoError(t, b.BuildForInstall(context.Background(), c))

	content := readFile(t, fs, GlobalOverrideEnvPath)
	seedLine := "globalSettings__mail__smtp__password=\n"
	require.Contains(t, content, seedLine)
	edited := strings.Replace(content, seedLine,
		"# SMTP relay credentials, rotated quarterly\n\nglobalSettings__mail__smtp__password=Xy$PASS_9\n", 1)
	edited += "export globalSettings__yubico__key='k$EY'\n"
	require.NoError(t, util.WriteFile(fs, GlobalOverrideEnvPath, []byte(edited), 0600))
	require.NoError(t, util.WriteFile(fs, MssqlOverrideEnvPath, []byte("SA_PASSWORD=Pa$SWORD_1\n"), 0600))
	c.Install.DatabasePassword = ""

	require.NoError(t, b.BuildForUpdate(context.Background(), c))

	assert.Equal(t, edited, readFile(t, fs, GlobalOverrideEnvPath))
	assert.Equal(t, "SA_PASSWORD=Pa$SWORD_1\n", readFile(t, fs, MssqlOverrideEnvPath))
	assert.Equal(t, "Pa$SWORD_1", c.Install.DatabasePassword)

	smtp, err := ReadEnvValue(b.writer, GlobalOverrideEnvPath, "globalSettings__mail__smtp__password")
	require.NoError(t, err)
	assert.Equal(t, "Xy$PASS_9", smtp)
	password, err := ReadEnvValue(b.writer, MssqlOverrideEnvPath, SaPasswordKey)
	require.NoError(t, err)
	assert.Equal(t, "Pa$SWORD_1", password)
}

func TestEnvBuilderUpdateRewritesOnlyManagedLines(t *testing.T) {
	fs := memfs.New()
	b := NewEnvBuilder(NewWriter(fs, nil))
	c := newTestContext()
	c.ComputeURL()
	require.NoError(t, b.BuildForInstall(context.Background(), c))

	content := "# operator notes\n" + readFile(t, fs, GlobalOverrideEnvPath)
	require.NoError(t, util.WriteFile(fs, GlobalOverrideEnvPath, []byte(content), 0600))

	c.Config.Ssl = true
	c.ComputeURL()
	require.NoError(t, b.BuildForUpdate(context.Background(), c))

	expected := strings.Replace(content,
		"globalSettings__baseServiceUri__vault=http://vault.example.com\n",
		"globalSettings__baseServiceUri__vault=https://vault.example.com\n", 1)
	expected = strings.Replace(expected,
		"globalSettings__baseServiceUri__api=http://vault.example.com/api\n",
		"globalSettings__baseServiceUri__api=https://vault.example.com/api\n", 1)
	for _, svc := range []string{"identity", "admin", "notifications"} {
		expected = strings.Replace(expected,
			"globalSettings__baseServiceUri__"+svc+"=http://vault.example.com/"+svc+"\n",
			"globalSettings__baseServiceUri__"+svc+"=https://vault.example.com/"+svc+"\n", 1)
	}
	assert.Equal(t, expected, readFile(t, fs, GlobalOverrideEnvPath))
}
