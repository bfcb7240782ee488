package security

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/cuemby/hoist/pkg/log"
	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
	"github.com/rs/zerolog"
)

const (
	// LetsEncryptProduction is the default ACME directory
	LetsEncryptProduction = "https://acme-v02.api.letsencrypt.org/directory"
	// LetsEncryptStaging issues untrusted certificates without production rate limits
	LetsEncryptStaging = "https://acme-staging-v02.api.letsencrypt.org/directory"
)

// ACMEUser implements the lego registration user interface
type ACMEUser struct {
	Email        string
	Registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *ACMEUser) GetEmail() string {
	return u.Email
}

func (u *ACMEUser) GetRegistration() *registration.Resource {
	return u.Registration
}

func (u *ACMEUser) GetPrivateKey() crypto.PrivateKey {
	return u.key
}

// ACMEAcquirer obtains certificates from an ACME directory using the HTTP-01
// challenge. The challenge is answered by a temporary listener on HTTPPort, so
// the reverse proxy must not be running while a certificate is acquired.
type ACMEAcquirer struct {
	DirectoryURL string
	HTTPPort     string
	logger       zerolog.Logger
}

// NewACMEAcquirer creates an acquirer for the given directory, defaulting to
// Let's Encrypt production
func NewACMEAcquirer(directoryURL string) *ACMEAcquirer {
	if directoryURL == "" {
		directoryURL = LetsEncryptProduction
	}
	return &ACMEAcquirer{
		DirectoryURL: directoryURL,
		HTTPPort:     "80",
		logger:       log.WithComponent("acme"),
	}
}

// Acquire registers an account for email and obtains a certificate for domain
func (a *ACMEAcquirer) Acquire(ctx context.Context, domain, email string) (*KeyPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate account key: %w", err)
	}
	user := &ACMEUser{Email: email, key: privateKey}

	config := lego.NewConfig(user)
	config.CADirURL = a.DirectoryURL
	config.Certificate.KeyType = certcrypto.RSA2048

	client, err := lego.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create lego client: %w", err)
	}

	if err := client.Challenge.SetHTTP01Provider(http01.NewProviderServer("", a.HTTPPort)); err != nil {
		return nil, fmt.Errorf("failed to set HTTP-01 provider: %w", err)
	}

	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("failed to register ACME account: %w", err)
	}
	user.Registration = reg

	a.logger.Info().Str("domain", domain).Str("directory", a.DirectoryURL).Msg("Requesting certificate")

	res, err := client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: []string{domain},
		Bundle:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to obtain certificate for %s: %w", domain, err)
	}

	return &KeyPair{
		CertPEM:  res.Certificate,
		KeyPEM:   res.PrivateKey,
		ChainPEM: res.IssuerCertificate,
	}, nil
}
