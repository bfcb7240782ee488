package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const (
	// Certificate rotation threshold: rotate when less than 30 days remaining
	certRotationThreshold = 30 * 24 * time.Hour

	// Self-signed TLS certificate validity: 10 years
	selfSignedValidity = 10 * 365 * 24 * time.Hour

	// Key size for generated certificates
	keySize = 2048
)

// KeyPair is a PEM encoded certificate chain and its private key
type KeyPair struct {
	CertPEM []byte
	KeyPEM  []byte
	// ChainPEM holds issuer certificates, when there are any
	ChainPEM []byte
}

// GenerateSelfSigned creates a self-signed RSA certificate for commonName,
// valid for the DNS names given
func GenerateSelfSigned(commonName string, dnsNames []string, validity time.Duration) (*KeyPair, error) {
	if validity <= 0 {
		validity = selfSignedValidity
	}

	key, err := rsa.GenerateKey(rand.Reader, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"hoist"},
			CommonName:   commonName,
		},
		DNSNames:              dnsNames,
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return &KeyPair{
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		KeyPEM: pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		}),
	}, nil
}

// SaveKeyPair writes the certificate and key files, creating their directories.
// The chain is written only when chainPath is set and the pair has one.
func SaveKeyPair(fs billy.Filesystem, pair *KeyPair, certPath, keyPath, chainPath string) error {
	for _, dir := range []string{path.Dir(certPath), path.Dir(keyPath)} {
		if err := fs.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create cert directory: %w", err)
		}
	}

	if err := util.WriteFile(fs, certPath, pair.CertPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := util.WriteFile(fs, keyPath, pair.KeyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if chainPath != "" && len(pair.ChainPEM) > 0 {
		if err := util.WriteFile(fs, chainPath, pair.ChainPEM, 0644); err != nil {
			return fmt.Errorf("failed to write certificate chain: %w", err)
		}
	}
	return nil
}

// LoadCertificate parses the first certificate in a PEM file
func LoadCertificate(fs billy.Filesystem, certPath string) (*x509.Certificate, error) {
	data, err := util.ReadFile(fs, certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("failed to decode certificate PEM")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// CertExists checks that every given file exists
func CertExists(fs billy.Filesystem, paths ...string) bool {
	for _, p := range paths {
		if _, err := fs.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// CertNeedsRotation returns true if the certificate should be rotated
// This happens when less than 30 days remain until expiry
func CertNeedsRotation(cert *x509.Certificate) bool {
	if cert == nil {
		return true
	}
	return time.Until(cert.NotAfter) < certRotationThreshold
}

// NeedsIssue reports whether the certificate at certPath is missing, unreadable
// or close to expiry
func NeedsIssue(fs billy.Filesystem, certPath string) bool {
	cert, err := LoadCertificate(fs, certPath)
	if err != nil {
		return true
	}
	return CertNeedsRotation(cert)
}
