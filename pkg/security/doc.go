/*
Package security handles the TLS material of a hoist deployment.

Three kinds of certificates end up under <datadir>/ssl and <datadir>/identity:

  - Managed Let's Encrypt certificates, obtained by ACMEAcquirer through
    lego with the HTTP-01 challenge and renewed when CertNeedsRotation
    reports less than 30 days of validity left.
  - Self-signed certificates created by GenerateSelfSigned for operators
    without a public domain. They are generated once and never replaced.
  - The identity server signing certificate, also generated once.

All file access goes through a billy.Filesystem so the builders that call
into this package can be tested on an in-memory filesystem:

	pair, err := security.GenerateSelfSigned("vault.example.com", []string{"vault.example.com"}, 0)
	if err != nil {
		return err
	}
	err = security.SaveKeyPair(fs, pair, "ssl/self/certificate.crt", "ssl/self/private.key", "")
*/
package security
