package builder

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/cuemby/hoist/pkg/log"
	"github.com/cuemby/hoist/pkg/types"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// SaPasswordKey holds the database administrator password in mssql.override.env
const SaPasswordKey = "SA_PASSWORD"

const (
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	databasePasswordLength = 32
	certPasswordLength     = 32
	identityKeyLength      = 64
)

// EnvBuilder writes the environment files consumed by the containers.
// global.env and mssql.env are owned by hoist and rendered with godotenv. The
// override files belong to the operator and are edited in place: hoist
// rewrites only the lines of keys it manages, appends seed keys that are
// missing and leaves every other line untouched.
type EnvBuilder struct {
	writer *Writer
	logger zerolog.Logger
}

// NewEnvBuilder creates an EnvBuilder
func NewEnvBuilder(w *Writer) *EnvBuilder {
	return &EnvBuilder{writer: w, logger: log.WithComponent("env")}
}

func (b *EnvBuilder) Name() string { return "env" }

// BuildForInstall generates missing secrets and writes all four files
func (b *EnvBuilder) BuildForInstall(_ context.Context, c *types.Context) error {
	if err := generateSecrets(&c.Install); err != nil {
		return err
	}
	return b.build(c)
}

// BuildForUpdate adopts secrets already present in the override files when
// config.yml has none, then rewrites the files
func (b *EnvBuilder) BuildForUpdate(_ context.Context, c *types.Context) error {
	if c.Install.DatabasePassword == "" {
		existing, err := b.readEnv(MssqlOverrideEnvPath)
		if err != nil {
			return err
		}
		c.Install.DatabasePassword = existing[SaPasswordKey]
	}
	if c.Install.IdentityCertPassword == "" || c.Install.InternalIdentityKey == "" {
		existing, err := b.readEnv(GlobalOverrideEnvPath)
		if err != nil {
			return err
		}
		if c.Install.IdentityCertPassword == "" {
			c.Install.IdentityCertPassword = existing["globalSettings__identityServer__certificatePassword"]
		}
		if c.Install.InternalIdentityKey == "" {
			c.Install.InternalIdentityKey = existing["globalSettings__internalIdentityKey"]
		}
	}
	if err := generateSecrets(&c.Install); err != nil {
		return err
	}
	return b.build(c)
}

func (b *EnvBuilder) build(c *types.Context) error {
	if err := b.writeOwned(GlobalEnvPath, globalValues()); err != nil {
		return err
	}
	if err := b.writeOwned(MssqlEnvPath, mssqlValues()); err != nil {
		return err
	}
	if err := b.mergeOverride(GlobalOverrideEnvPath, globalOverrideValues(c), globalSeedValues()); err != nil {
		return err
	}
	return b.mergeOverride(MssqlOverrideEnvPath, map[string]string{
		SaPasswordKey: c.Install.DatabasePassword,
	}, nil)
}

func (b *EnvBuilder) writeOwned(name string, values map[string]string) error {
	data, err := marshalEnv(values)
	if err != nil {
		return err
	}
	return b.writer.WriteArtifact(b.Name(), name, data, 0644)
}

func (b *EnvBuilder) mergeOverride(name string, managed, seed map[string]string) error {
	data, _, err := b.writer.ReadFile(name)
	if err != nil {
		return err
	}
	file := parseEnvFile(data)
	file.Merge(managed, seed)
	return b.writer.WriteUserFile(name, file.Bytes(), 0600)
}

func (b *EnvBuilder) readEnv(name string) (map[string]string, error) {
	data, _, err := b.writer.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return parseEnvFile(data).Values(), nil
}

// ReadEnvValue returns key from an env file in the data directory. The value
// is taken literally, without variable expansion.
func ReadEnvValue(w *Writer, name, key string) (string, error) {
	data, exists, err := w.ReadFile(name)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%s not found", name)
	}
	return parseEnvFile(data).Values()[key], nil
}

// marshalEnv writes sorted KEY="value" lines
func marshalEnv(values map[string]string) ([]byte, error) {
	content, err := godotenv.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode env file: %w", err)
	}
	if content != "" {
		content += "\n"
	}
	return []byte(content), nil
}

func globalValues() map[string]string {
	return map[string]string{
		"ASPNETCORE_ENVIRONMENT":                          "Production",
		"globalSettings__selfHosted":                      "true",
		"globalSettings__pushRelayBaseUri":                "https://push.hoist.cuemby.com",
		"globalSettings__installation__identityUri":       "https://identity.hoist.cuemby.com",
		"globalSettings__attachment__baseDirectory":       "/etc/hoist/core/attachments",
		"globalSettings__dataProtection__directory":       "/etc/hoist/core/aspnet-dataprotection",
		"globalSettings__logDirectory":                    "/etc/hoist/logs",
		"globalSettings__licenseDirectory":                "/etc/hoist/core/licenses",
		"globalSettings__identityServer__certificatePath": "/etc/hoist/identity/identity.crt",
	}
}

func mssqlValues() map[string]string {
	return map[string]string{
		"ACCEPT_EULA": "Y",
		"MSSQL_PID":   "Express",
	}
}

func globalOverrideValues(c *types.Context) map[string]string {
	url := strings.TrimRight(c.Config.Url, "/")
	return map[string]string{
		"globalSettings__baseServiceUri__vault":               url,
		"globalSettings__baseServiceUri__api":                 url + "/api",
		"globalSettings__baseServiceUri__identity":            url + "/identity",
		"globalSettings__baseServiceUri__admin":               url + "/admin",
		"globalSettings__baseServiceUri__notifications":       url + "/notifications",
		"globalSettings__sqlServer__connectionString":         appConnectionString(c.Install.DatabasePassword),
		"globalSettings__identityServer__certificatePassword": c.Install.IdentityCertPassword,
		"globalSettings__internalIdentityKey":                 c.Install.InternalIdentityKey,
		"globalSettings__installation__id":                    c.Install.InstallationId,
		"globalSettings__installation__key":                   c.Install.InstallationKey,
		"globalSettings__pushNotifications__enabled":          fmt.Sprintf("%t", c.Config.PushNotifications),
	}
}

// globalSeedValues are written once so operators can find and fill them in
func globalSeedValues() map[string]string {
	return map[string]string{
		"adminSettings__admins":                   "",
		"globalSettings__mail__replyToEmail":      "no-reply@localhost",
		"globalSettings__mail__smtp__host":        "",
		"globalSettings__mail__smtp__port":        "587",
		"globalSettings__mail__smtp__ssl":         "false",
		"globalSettings__mail__smtp__username":    "",
		"globalSettings__mail__smtp__password":    "",
		"globalSettings__disableUserRegistration": "false",
		"globalSettings__hibpApiKey":              "",
	}
}

func appConnectionString(password string) string {
	return "Data Source=tcp:mssql,1433;Initial Catalog=vault;Persist Security Info=False;" +
		"User ID=sa;Password=" + password + ";MultipleActiveResultSets=False;" +
		"Connect Timeout=30;Encrypt=True;TrustServerCertificate=True"
}

// generateSecrets fills in any secret the install does not have yet
func generateSecrets(install *types.Install) error {
	targets := []struct {
		value  *string
		length int
	}{
		{&install.DatabasePassword, databasePasswordLength},
		{&install.IdentityCertPassword, certPasswordLength},
		{&install.InternalIdentityKey, identityKeyLength},
	}
	for _, t := range targets {
		if *t.value != "" {
			continue
		}
		secret, err := randomSecret(t.length)
		if err != nil {
			return err
		}
		*t.value = secret
	}
	return nil
}

// randomSecret returns an alphanumeric string with at least one upper case
// letter, one lower case letter and one digit, as SQL Server password policy
// requires
func randomSecret(length int) (string, error) {
	limit := big.NewInt(int64(len(secretAlphabet)))
	for {
		buf := make([]byte, length)
		for i := range buf {
			n, err := rand.Int(rand.Reader, limit)
			if err != nil {
				return "", fmt.Errorf("failed to generate secret: %w", err)
			}
			buf[i] = secretAlphabet[n.Int64()]
		}
		s := string(buf)
		if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") &&
			strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") &&
			strings.ContainsAny(s, "0123456789") {
			return s, nil
		}
	}
}
