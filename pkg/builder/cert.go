package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/cuemby/hoist/pkg/log"
	"github.com/cuemby/hoist/pkg/prompt"
	"github.com/cuemby/hoist/pkg/security"
	"github.com/cuemby/hoist/pkg/types"
	"github.com/rs/zerolog"
)

// Acquirer obtains a publicly trusted certificate for a domain
type Acquirer interface {
	Acquire(ctx context.Context, domain, email string) (*security.KeyPair, error)
}

// ErrNoAcquirer is returned when a managed certificate is needed but no
// Acquirer was configured
var ErrNoAcquirer = errors.New("managed certificates requested but no ACME acquirer is configured")

// CertBuilder places TLS material for the reverse proxy and the identity
// server signing certificate
type CertBuilder struct {
	writer   *Writer
	prompter prompt.Prompter
	acquirer Acquirer
	out      io.Writer
	logger   zerolog.Logger
}

// NewCertBuilder creates a CertBuilder. acquirer may be nil when Let's Encrypt
// is never requested.
func NewCertBuilder(w *Writer, p prompt.Prompter, a Acquirer, out io.Writer) *CertBuilder {
	return &CertBuilder{
		writer:   w,
		prompter: p,
		acquirer: a,
		out:      out,
		logger:   log.WithComponent("cert"),
	}
}

func (b *CertBuilder) Name() string { return "cert" }

// BuildForInstall decides the TLS mode and provisions its material
func (b *CertBuilder) BuildForInstall(ctx context.Context, c *types.Context) error {
	domain := c.Install.Domain

	switch {
	case c.Parameters.Bool("letsencrypt"):
		c.Config.Ssl = true
		c.Config.SslManagedLetsEncrypt = true
		if c.Config.LetsEncryptEmail == "" {
			email, err := b.prompter.Ask("Enter your email address (Let's Encrypt will send you certificate expiration reminders)")
			if err != nil {
				return err
			}
			c.Config.LetsEncryptEmail = email
		}
		setLetsEncryptPaths(c, domain)
		if err := b.ensureManaged(ctx, c); err != nil {
			return err
		}

	default:
		own, err := b.prompter.Confirm("Do you have a SSL certificate to use?")
		if err != nil {
			return err
		}
		if own {
			c.Config.Ssl = true
			c.Config.SslManagedLetsEncrypt = false
			c.Config.SslCertificatePath = path.Join("/etc/ssl", domain, "certificate.crt")
			c.Config.SslKeyPath = path.Join("/etc/ssl", domain, "private.key")
			c.Config.SslCaPath = path.Join("/etc/ssl", domain, "ca.crt")
			if err := b.writer.Filesystem().MkdirAll(path.Join("ssl", domain), 0700); err != nil {
				return fmt.Errorf("failed to create certificate directory: %w", err)
			}
			fmt.Fprintf(b.out, "\nMake sure 'certificate.crt', 'private.key' and 'ca.crt' are provided in\n"+
				"`%s` before starting.\n\n", path.Join(c.DataDir, "ssl", domain))
			break
		}

		selfSigned, err := b.prompter.Confirm("Do you want to generate a self-signed SSL certificate?")
		if err != nil {
			return err
		}
		if !selfSigned {
			c.Config.Ssl = false
			c.Config.SslManagedLetsEncrypt = false
			break
		}
		c.Config.Ssl = true
		c.Config.SslManagedLetsEncrypt = false
		c.Config.SslCertificatePath = path.Join("/etc/ssl/self", domain, "certificate.crt")
		c.Config.SslKeyPath = path.Join("/etc/ssl/self", domain, "private.key")
		c.Config.SslCaPath = ""
		if err := b.ensureSelfSigned(domain); err != nil {
			return err
		}
	}

	return b.ensureIdentityCert()
}

// BuildForUpdate renews a managed certificate close to expiry and makes sure
// the identity certificate exists. Operator provided certificates are left alone.
func (b *CertBuilder) BuildForUpdate(ctx context.Context, c *types.Context) error {
	if c.Config.Ssl && c.Config.SslManagedLetsEncrypt {
		if err := b.ensureManaged(ctx, c); err != nil {
			return err
		}
	}
	return b.ensureIdentityCert()
}

func setLetsEncryptPaths(c *types.Context, domain string) {
	live := path.Join("/etc/letsencrypt/live", domain)
	c.Config.SslCertificatePath = path.Join(live, "fullchain.pem")
	c.Config.SslKeyPath = path.Join(live, "privkey.pem")
	c.Config.SslCaPath = path.Join(live, "chain.pem")
}

func (b *CertBuilder) ensureManaged(ctx context.Context, c *types.Context) error {
	domain := c.Install.Domain
	live := path.Join("letsencrypt/live", domain)
	certPath := path.Join(live, "fullchain.pem")

	fs := b.writer.Filesystem()
	if !security.NeedsIssue(fs, certPath) {
		b.logger.Debug().Str("domain", domain).Msg("Managed certificate is current")
		return nil
	}
	if b.acquirer == nil {
		return ErrNoAcquirer
	}

	fmt.Fprintf(b.out, "Requesting a Let's Encrypt certificate for %s\n", domain)
	pair, err := b.acquirer.Acquire(ctx, domain, c.Config.LetsEncryptEmail)
	if err != nil {
		return fmt.Errorf("failed to acquire certificate: %w", err)
	}
	if err := security.SaveKeyPair(fs, pair, certPath, path.Join(live, "privkey.pem"), path.Join(live, "chain.pem")); err != nil {
		return err
	}

	b.logger.Info().Str("domain", domain).Msg("Managed certificate issued")
	fmt.Fprintf(b.out, "✓ Certificate issued for %s\n", domain)
	return nil
}

func (b *CertBuilder) ensureSelfSigned(domain string) error {
	dir := path.Join("ssl/self", domain)
	certPath := path.Join(dir, "certificate.crt")
	keyPath := path.Join(dir, "private.key")

	fs := b.writer.Filesystem()
	if security.CertExists(fs, certPath, keyPath) {
		return nil
	}

	pair, err := security.GenerateSelfSigned(domain, []string{domain}, 0)
	if err != nil {
		return err
	}
	if err := security.SaveKeyPair(fs, pair, certPath, keyPath, ""); err != nil {
		return err
	}
	fmt.Fprintf(b.out, "✓ Self-signed certificate generated for %s\n", domain)
	return nil
}

func (b *CertBuilder) ensureIdentityCert() error {
	fs := b.writer.Filesystem()
	if security.CertExists(fs, IdentityCertPath, IdentityKeyPath) {
		return nil
	}

	pair, err := security.GenerateSelfSigned("identity", nil, 0)
	if err != nil {
		return fmt.Errorf("failed to generate identity certificate: %w", err)
	}
	if err := security.SaveKeyPair(fs, pair, IdentityCertPath, IdentityKeyPath, ""); err != nil {
		return err
	}
	b.logger.Info().Msg("Identity signing certificate generated")
	return nil
}

// URLBuilder derives the public URL from the TLS mode and the domain
type URLBuilder struct{}

func (URLBuilder) Name() string { return "url" }

func (URLBuilder) BuildForInstall(_ context.Context, c *types.Context) error {
	c.ComputeURL()
	return nil
}

// BuildForUpdate keeps a URL the operator set in config.yml
func (URLBuilder) BuildForUpdate(_ context.Context, c *types.Context) error {
	if c.Config.Url == "" {
		c.ComputeURL()
	}
	return nil
}
