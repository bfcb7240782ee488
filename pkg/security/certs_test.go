package security

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSigned(t *testing.T) {
	pair, err := GenerateSelfSigned("vault.example.com", []string{"vault.example.com"}, 0)
	require.NoError(t, err)
	assert.Contains(t, string(pair.CertPEM), "BEGIN CERTIFICATE")
	assert.Contains(t, string(pair.KeyPEM), "BEGIN RSA PRIVATE KEY")
	assert.Empty(t, pair.ChainPEM)
}

func TestSaveAndLoadCertificate(t *testing.T) {
	fs := memfs.New()
	pair, err := GenerateSelfSigned("vault.example.com", []string{"vault.example.com"}, 24*time.Hour*365)
	require.NoError(t, err)

	require.NoError(t, SaveKeyPair(fs, pair, "ssl/self/certificate.crt", "ssl/self/private.key", ""))
	assert.True(t, CertExists(fs, "ssl/self/certificate.crt", "ssl/self/private.key"))
	assert.False(t, CertExists(fs, "ssl/self/ca.crt"))

	cert, err := LoadCertificate(fs, "ssl/self/certificate.crt")
	require.NoError(t, err)
	assert.Equal(t, "vault.example.com", cert.Subject.CommonName)
	assert.Equal(t, []string{"vault.example.com"}, cert.DNSNames)
	assert.False(t, NeedsIssue(fs, "ssl/self/certificate.crt"))
}

func TestSaveKeyPairWritesChain(t *testing.T) {
	fs := memfs.New()
	pair := &KeyPair{CertPEM: []byte("cert"), KeyPEM: []byte("key"), ChainPEM: []byte("chain")}

	require.NoError(t, SaveKeyPair(fs, pair, "ssl/a/cert.pem", "ssl/a/key.pem", "ssl/a/chain.pem"))
	assert.True(t, CertExists(fs, "ssl/a/chain.pem"))
}

func TestLoadCertificateInvalid(t *testing.T) {
	fs := memfs.New()
	pair := &KeyPair{CertPEM: []byte("not pem"), KeyPEM: []byte("key")}
	require.NoError(t, SaveKeyPair(fs, pair, "c.pem", "k.pem", ""))

	_, err := LoadCertificate(fs, "c.pem")
	assert.Error(t, err)
	assert.True(t, NeedsIssue(fs, "c.pem"))
	assert.True(t, NeedsIssue(fs, "missing.pem"))
}

func TestCertNeedsRotation(t *testing.T) {
	tests := []struct {
		name     string
		cert     *x509.Certificate
		expected bool
	}{
		{"nil certificate", nil, true},
		{"expires in a year", &x509.Certificate{NotAfter: time.Now().Add(365 * 24 * time.Hour)}, false},
		{"expires in 31 days", &x509.Certificate{NotAfter: time.Now().Add(31 * 24 * time.Hour)}, false},
		{"expires in 29 days", &x509.Certificate{NotAfter: time.Now().Add(29 * 24 * time.Hour)}, true},
		{"already expired", &x509.Certificate{NotAfter: time.Now().Add(-time.Hour)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CertNeedsRotation(tt.cert))
		})
	}
}

func TestNewACMEAcquirerDefaults(t *testing.T) {
	a := NewACMEAcquirer("")
	assert.Equal(t, LetsEncryptProduction, a.DirectoryURL)
	assert.Equal(t, "80", a.HTTPPort)

	a = NewACMEAcquirer(LetsEncryptStaging)
	assert.Equal(t, LetsEncryptStaging, a.DirectoryURL)
}
